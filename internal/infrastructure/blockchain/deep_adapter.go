package blockchain

import (
	"context"
	"math/big"
	"sort"
	"strings"

	"go.uber.org/zap"

	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/config"
	"token-score-engine/internal/infrastructure/logger"
)

// minLogBatch is the floor below which a halved log query is abandoned
// and the sub-range skipped instead
const minLogBatch = 100

// DeepDataSource implements the data-source contract through direct
// on-chain scanning: transfer-event replay for activity, balance queries
// for holders. It is slower than the indexed path but has no provider
// dependency, so it serves as the fallback when the fast path degrades.
type DeepDataSource struct {
	chain  service.ChainStateReader
	cfg    *config.ChainConfig
	logger *logger.Logger
}

// NewDeepDataSource creates the deep data source over a chain reader
func NewDeepDataSource(chain service.ChainStateReader, cfg *config.ChainConfig, logger *logger.Logger) *DeepDataSource {
	return &DeepDataSource{
		chain:  chain,
		cfg:    cfg,
		logger: logger.WithComponent("deep-datasource"),
	}
}

// Name returns the data source tag
func (s *DeepDataSource) Name() string {
	return entity.DataSourceDeep
}

// FetchActivity replays transfer events over the recent block span and
// resolves contract labels from bytecode. The deep path returns the whole
// span in one page; the cursor is always empty.
func (s *DeepDataSource) FetchActivity(ctx context.Context, tokenAddress string, cursor string, pageSize int) ([]entity.AccountRecord, string, error) {
	if cursor != "" {
		return nil, "", nil
	}

	latest, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return nil, "", err
	}

	fromBlock := uint64(0)
	if latest > s.cfg.ActivityFallbackSpan {
		fromBlock = latest - s.cfg.ActivityFallbackSpan
	}

	records, err := s.scanTransferEvents(ctx, tokenAddress, fromBlock, latest)
	if err != nil {
		return nil, "", err
	}

	if len(records) > pageSize && pageSize > 0 {
		// Newest first, matching the indexed feed's ordering
		sort.Slice(records, func(i, j int) bool {
			return records[i].BlockNumber > records[j].BlockNumber
		})
		records = records[:pageSize]
	}

	if err := s.resolveContractLabels(ctx, records); err != nil {
		return nil, "", err
	}

	return records, "", nil
}

// FetchHolders reconstructs the holder set from transfer events and
// current balances. Ownership shares are computed against the sum of
// observed balances, since the event replay sees every address that ever
// held the token within the span.
func (s *DeepDataSource) FetchHolders(ctx context.Context, tokenAddress string, pageSize int) ([]entity.TokenHolder, int, error) {
	latest, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return nil, 0, err
	}

	fromBlock := uint64(0)
	if latest > s.cfg.HolderFallbackSpan {
		fromBlock = latest - s.cfg.HolderFallbackSpan
	}

	records, err := s.scanTransferEvents(ctx, tokenAddress, fromBlock, latest)
	if err != nil {
		return nil, 0, err
	}

	// Collect every address the events touched, then query live balances
	addresses := make(map[string]struct{})
	for i := range records {
		for _, addr := range records[i].Participants() {
			addresses[strings.ToLower(addr)] = struct{}{}
		}
	}

	type holderBalance struct {
		address string
		balance *big.Int
	}

	var holders []holderBalance
	observedTotal := new(big.Float)
	for addr := range addresses {
		balance, err := s.chain.BalanceOf(ctx, tokenAddress, addr)
		if err != nil {
			s.logger.Warn("balance query failed, skipping holder",
				zap.String("address", addr), zap.Error(err))
			continue
		}
		if balance.Sign() > 0 {
			holders = append(holders, holderBalance{address: addr, balance: balance})
			observedTotal.Add(observedTotal, new(big.Float).SetInt(balance))
		}
	}

	sort.Slice(holders, func(i, j int) bool {
		return holders[i].balance.Cmp(holders[j].balance) > 0
	})

	total := len(holders)
	if pageSize > 0 && len(holders) > pageSize {
		holders = holders[:pageSize]
	}

	result := make([]entity.TokenHolder, 0, len(holders))
	for i, h := range holders {
		percentage := entity.NoPercentage
		if observedTotal.Sign() > 0 {
			share := new(big.Float).Quo(new(big.Float).SetInt(h.balance), observedTotal)
			pct, _ := new(big.Float).Mul(share, big.NewFloat(100)).Float64()
			percentage = pct
		}

		isContract, err := s.chain.IsContract(ctx, h.address)
		if err != nil {
			isContract = false
		}

		balanceFormatted, _ := new(big.Float).SetInt(h.balance).Float64()
		result = append(result, entity.TokenHolder{
			Address:          h.address,
			Balance:          h.balance,
			BalanceFormatted: balanceFormatted,
			Percentage:       percentage,
			Rank:             i + 1,
			IsContract:       isContract,
		})
	}

	return result, total, nil
}

// scanTransferEvents walks the block range in batches. A range rejection
// is retried once with a halved batch; if the halved query still fails or
// would drop below the minimum batch size, the sub-range is skipped and
// logged as a coverage gap.
func (s *DeepDataSource) scanTransferEvents(ctx context.Context, tokenAddress string, fromBlock, toBlock uint64) ([]entity.AccountRecord, error) {
	batchSize := s.cfg.LogBatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	var all []entity.AccountRecord
	current := fromBlock

	for current <= toBlock {
		batchEnd := current + batchSize - 1
		if batchEnd > toBlock {
			batchEnd = toBlock
		}

		records, err := s.chain.TransferEvents(ctx, tokenAddress, current, batchEnd)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !IsRangeTooLarge(err) {
				return nil, err
			}

			half := (batchEnd - current) / 2
			if half < minLogBatch {
				s.logger.Warn("log query range too small to halve, skipping blocks",
					zap.Uint64("from", current), zap.Uint64("to", batchEnd))
				current = batchEnd + 1
				continue
			}

			halvedEnd := current + half
			records, err = s.chain.TransferEvents(ctx, tokenAddress, current, halvedEnd)
			if err != nil {
				s.logger.Warn("halved log query failed, skipping blocks",
					zap.Uint64("from", current), zap.Uint64("to", halvedEnd), zap.Error(err))
				current = halvedEnd + 1
				continue
			}
			batchEnd = halvedEnd
		}

		all = append(all, records...)
		current = batchEnd + 1
	}

	return all, nil
}

// resolveContractLabels fills in the contract flags the indexed provider
// would have supplied, using cached bytecode checks
func (s *DeepDataSource) resolveContractLabels(ctx context.Context, records []entity.AccountRecord) error {
	for i := range records {
		if records[i].From != "" && records[i].From != entity.ZeroAddress {
			isContract, err := s.chain.IsContract(ctx, records[i].From)
			if err != nil {
				return err
			}
			records[i].FromContract = isContract
		}
		if records[i].To != "" && records[i].To != entity.ZeroAddress {
			isContract, err := s.chain.IsContract(ctx, records[i].To)
			if err != nil {
				return err
			}
			records[i].ToContract = isContract
		}
	}
	return nil
}
