package provider

import (
	"context"
	"math"
	"math/big"
	"strconv"

	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/infrastructure/logger"
)

// FastDataSource adapts the indexed API client to the uniform data-source
// contract used by the analyzers. It is the "fast" path: holder shares and
// contract labels come pre-computed from the index, so no RPC calls are
// needed.
type FastDataSource struct {
	client *IndexedClient
	logger *logger.Logger
}

// NewFastDataSource creates the fast data source over an indexed client
func NewFastDataSource(client *IndexedClient, logger *logger.Logger) *FastDataSource {
	return &FastDataSource{
		client: client,
		logger: logger.WithComponent("fast-datasource"),
	}
}

// Name returns the data source tag
func (s *FastDataSource) Name() string {
	return entity.DataSourceFast
}

// FetchHolders returns the top holders ranked by balance, along with the
// indexed total holder count.
func (s *FastDataSource) FetchHolders(ctx context.Context, tokenAddress string, pageSize int) ([]entity.TokenHolder, int, error) {
	page, err := s.client.GetTokenHolders(ctx, tokenAddress, 1, pageSize)
	if err != nil {
		return nil, 0, err
	}

	holders := make([]entity.TokenHolder, 0, len(page.Holders))
	for i, item := range page.Holders {
		addr := item.Holder
		if addr == "" {
			addr = item.AccountAddress
		}

		balanceFormatted, err := strconv.ParseFloat(item.Amount, 64)
		if err != nil {
			balanceFormatted = 0
		}
		percentage, err := strconv.ParseFloat(item.Percentage, 64)
		if err != nil {
			percentage = entity.NoPercentage
		}

		holders = append(holders, entity.TokenHolder{
			Address:          addr,
			Balance:          big.NewInt(int64(math.Trunc(balanceFormatted))),
			BalanceFormatted: balanceFormatted,
			Percentage:       percentage,
			Rank:             i + 1,
			IsContract:       item.IsContract,
		})
	}

	total := page.Total
	if total < len(holders) {
		total = len(holders)
	}
	return holders, total, nil
}

// FetchActivity returns one page of interaction records. The feed is
// ordered most-recent-first; callers walk pages via the cursor and stop on
// an empty page, an empty cursor, or their own record limit.
func (s *FastDataSource) FetchActivity(ctx context.Context, tokenAddress string, cursor string, pageSize int) ([]entity.AccountRecord, string, error) {
	page, err := s.client.GetContractTransactions(ctx, tokenAddress, cursor, pageSize)
	if err != nil {
		return nil, "", err
	}

	records := make([]entity.AccountRecord, 0, len(page.Transactions))
	for _, item := range page.Transactions {
		blockNumber, _ := item.BlockNumber.Int64()
		timestamp, _ := item.Timestamp.Int64()

		records = append(records, entity.AccountRecord{
			TxHash:       item.Hash,
			BlockNumber:  uint64(blockNumber),
			Timestamp:    timestamp,
			From:         item.From,
			To:           item.To,
			FromContract: item.FromAddress.IsContract,
			ToContract:   item.ToAddress.IsContract,
			Method:       item.MethodName,
		})
	}

	return records, page.NextCursor, nil
}
