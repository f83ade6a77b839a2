package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/config"
	"token-score-engine/internal/infrastructure/logger"
)

// IndexedClient talks to the Blockvision-style indexed API. It exposes the
// two endpoints the scorer needs: the holder leaderboard and the contract
// interaction feed. Every failure is translated into the domain error
// taxonomy at this boundary; callers never see raw HTTP errors.
type IndexedClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger

	// requestCount is bumped from concurrently running analyzers
	requestCount atomic.Int64
}

// holderItem mirrors the provider's holder entry. Amount and percentage
// arrive as decimal strings.
type holderItem struct {
	Holder         string `json:"holder"`
	AccountAddress string `json:"accountAddress"`
	Amount         string `json:"amount"`
	Percentage     string `json:"percentage"`
	IsContract     bool   `json:"isContract"`
}

type holdersResult struct {
	Total int          `json:"total"`
	Data  []holderItem `json:"data"`
}

type addressInfo struct {
	IsContract bool `json:"isContract"`
}

// transactionItem mirrors the provider's account/transactions entry
type transactionItem struct {
	Hash        string      `json:"hash"`
	BlockNumber json.Number `json:"blockNumber"`
	Timestamp   json.Number `json:"timestamp"` // epoch milliseconds
	From        string      `json:"from"`
	To          string      `json:"to"`
	FromAddress addressInfo `json:"fromAddress"`
	ToAddress   addressInfo `json:"toAddress"`
	MethodName  string      `json:"methodName"`
}

type transactionsResult struct {
	Data           []transactionItem `json:"data"`
	NextPageCursor string            `json:"nextPageCursor"`
}

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
	Data    json.RawMessage `json:"data"`
}

// HolderPage is one page of the holder leaderboard
type HolderPage struct {
	Total   int
	Holders []holderItem
}

// TransactionPage is one page of the contract interaction feed
type TransactionPage struct {
	Transactions []transactionItem
	NextCursor   string
}

// NewIndexedClient creates a new indexed API client
func NewIndexedClient(cfg *config.ProviderConfig, logger *logger.Logger) *IndexedClient {
	return &IndexedClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.WithComponent("indexed-client"),
	}
}

// GetTokenHolders fetches one page of the holder leaderboard, ranked by
// balance descending. Page indexes start at 1; page size is capped at 100
// by the provider.
func (c *IndexedClient) GetTokenHolders(ctx context.Context, tokenAddress string, pageIndex, pageSize int) (*HolderPage, error) {
	if pageIndex < 1 {
		pageIndex = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > 100 {
		pageSize = 100
	}

	params := url.Values{}
	params.Set("contractAddress", normalizeAddress(tokenAddress))
	params.Set("pageIndex", strconv.Itoa(pageIndex))
	params.Set("pageSize", strconv.Itoa(pageSize))

	raw, err := c.request(ctx, "token/holders", params)
	if err != nil {
		return nil, err
	}

	var result holdersResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Some deployments return the holder array directly
		var items []holderItem
		if err2 := json.Unmarshal(raw, &items); err2 != nil {
			return nil, &service.ApplicationError{
				Op:      "token/holders",
				Code:    -1,
				Message: fmt.Sprintf("unexpected response shape: %v", err),
			}
		}
		result = holdersResult{Total: 0, Data: items}
	}

	return &HolderPage{Total: result.Total, Holders: result.Data}, nil
}

// GetContractTransactions fetches one page of the interaction feed for a
// token contract. An empty cursor starts from the most recent record; the
// returned cursor is empty when no further pages exist.
func (c *IndexedClient) GetContractTransactions(ctx context.Context, tokenAddress, cursor string, limit int) (*TransactionPage, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("address", normalizeAddress(tokenAddress))
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	raw, err := c.request(ctx, "account/transactions", params)
	if err != nil {
		return nil, err
	}

	var result transactionsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &service.ApplicationError{
			Op:      "account/transactions",
			Code:    -1,
			Message: fmt.Sprintf("unexpected response shape: %v", err),
		}
	}

	return &TransactionPage{
		Transactions: result.Data,
		NextCursor:   result.NextPageCursor,
	}, nil
}

// request performs one GET against the indexed API and classifies the
// outcome: 429 becomes a RateLimitError, a non-zero envelope code becomes
// an ApplicationError, transport failures become NetworkError.
func (c *IndexedClient) request(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &service.NetworkError{Op: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	c.requestCount.Add(1)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &service.NetworkError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("provider rate limit hit")
		return nil, &service.RateLimitError{Op: endpoint}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &service.NetworkError{
			Op:  endpoint,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &service.NetworkError{Op: endpoint, Err: err}
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &service.ApplicationError{
			Op:      endpoint,
			Code:    -1,
			Message: fmt.Sprintf("malformed response: %v", err),
		}
	}

	if envelope.Code != 0 {
		return nil, &service.ApplicationError{
			Op:      endpoint,
			Code:    envelope.Code,
			Message: envelope.Message,
		}
	}

	c.logger.Debug(fmt.Sprintf("provider request completed: %s in %s", endpoint, time.Since(start)))

	if len(envelope.Result) > 0 && string(envelope.Result) != "null" {
		return envelope.Result, nil
	}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		// Some endpoints nest the payload under data instead of result;
		// re-wrap so downstream decoding sees a consistent shape.
		wrapped, _ := json.Marshal(map[string]json.RawMessage{"data": envelope.Data})
		return wrapped, nil
	}
	return body, nil
}

// RequestCount returns the number of API requests issued
func (c *IndexedClient) RequestCount() int64 {
	return c.requestCount.Load()
}

func normalizeAddress(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}
	return address
}
