package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/config"
	"token-score-engine/internal/infrastructure/logger"
)

const testToken = "0x2222222222222222222222222222222222222222"

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *IndexedClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewIndexedClient(&config.ProviderConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, nopLogger())
}

func TestGetTokenHolders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token/holders" {
			t.Errorf("path = %q, want /token/holders", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", got)
		}
		if got := r.URL.Query().Get("contractAddress"); got != testToken {
			t.Errorf("contractAddress = %q, want %q", got, testToken)
		}
		w.Write([]byte(`{
			"code": 0,
			"result": {
				"total": 1250,
				"data": [
					{"holder": "0xaaa1", "amount": "5000.5", "percentage": "12.5", "isContract": false},
					{"holder": "0xbbb1", "amount": "2000", "percentage": "5.0", "isContract": true}
				]
			}
		}`))
	})

	page, err := client.GetTokenHolders(context.Background(), testToken, 1, 100)
	if err != nil {
		t.Fatalf("GetTokenHolders() error: %v", err)
	}
	if page.Total != 1250 {
		t.Errorf("Total = %d, want 1250", page.Total)
	}
	if len(page.Holders) != 2 {
		t.Fatalf("got %d holders, want 2", len(page.Holders))
	}
	if page.Holders[0].Holder != "0xaaa1" || page.Holders[0].Amount != "5000.5" {
		t.Errorf("first holder = %+v", page.Holders[0])
	}
	if !page.Holders[1].IsContract {
		t.Error("second holder should be flagged as contract")
	}
}

func TestGetContractTransactions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/transactions" {
			t.Errorf("path = %q, want /account/transactions", r.URL.Path)
		}
		if got := r.URL.Query().Get("cursor"); got != "abc" {
			t.Errorf("cursor = %q, want abc", got)
		}
		w.Write([]byte(`{
			"code": 0,
			"result": {
				"data": [{
					"hash": "0xdead",
					"blockNumber": 12345,
					"timestamp": 1717000000000,
					"from": "0xaaa1",
					"to": "0xbbb1",
					"fromAddress": {"isContract": false},
					"toAddress": {"isContract": true},
					"methodName": "transfer"
				}],
				"nextPageCursor": "def"
			}
		}`))
	})

	page, err := client.GetContractTransactions(context.Background(), testToken, "abc", 50)
	if err != nil {
		t.Fatalf("GetContractTransactions() error: %v", err)
	}
	if page.NextCursor != "def" {
		t.Errorf("NextCursor = %q, want def", page.NextCursor)
	}
	if len(page.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(page.Transactions))
	}
	tx := page.Transactions[0]
	if tx.Hash != "0xdead" || tx.MethodName != "transfer" {
		t.Errorf("transaction = %+v", tx)
	}
	if tx.FromAddress.IsContract || !tx.ToAddress.IsContract {
		t.Errorf("contract labels = from %v, to %v; want from false, to true",
			tx.FromAddress.IsContract, tx.ToAddress.IsContract)
	}
}

func TestRequestClassifiesRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetTokenHolders(context.Background(), testToken, 1, 100)
	if !service.IsRateLimit(err) {
		t.Fatalf("429 produced %T (%v), want RateLimitError", err, err)
	}
	if !service.IsRetryable(err) {
		t.Error("rate limit error should be retryable")
	}
}

func TestRequestClassifiesEnvelopeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 10001, "message": "contract not indexed"}`))
	})

	_, err := client.GetTokenHolders(context.Background(), testToken, 1, 100)
	if !service.IsApplicationError(err) {
		t.Fatalf("non-zero envelope code produced %T (%v), want ApplicationError", err, err)
	}
	if service.IsRetryable(err) {
		t.Error("application error should not be retryable")
	}
}

func TestRequestClassifiesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetTokenHolders(context.Background(), testToken, 1, 100)
	if !service.IsRetryable(err) {
		t.Fatalf("502 produced %T (%v), want retryable NetworkError", err, err)
	}
	if service.IsRateLimit(err) {
		t.Error("502 should not classify as rate limit")
	}
}

func TestRequestClassifiesMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	})

	_, err := client.GetTokenHolders(context.Background(), testToken, 1, 100)
	if !service.IsApplicationError(err) {
		t.Fatalf("malformed body produced %T (%v), want ApplicationError", err, err)
	}
}

func TestRequestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse every connection

	client := NewIndexedClient(&config.ProviderConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: time.Second,
	}, nopLogger())

	_, err := client.GetTokenHolders(context.Background(), testToken, 1, 100)
	if err == nil {
		t.Fatal("expected transport failure")
	}
	if !service.IsRetryable(err) || service.IsApplicationError(err) {
		t.Errorf("transport failure produced %T (%v), want retryable NetworkError", err, err)
	}
}

func TestRequestCountConcurrentCallers(t *testing.T) {
	// The holder and activity analyzers share one client and run in
	// parallel; the counter must survive concurrent bumps
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 0, "result": {"total": 0, "data": []}}`))
	})

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			if _, err := client.GetTokenHolders(context.Background(), testToken, 1, 100); err != nil {
				t.Errorf("GetTokenHolders() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := client.RequestCount(); got != callers {
		t.Errorf("RequestCount() = %d, want %d", got, callers)
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0xABCDef", "0xabcdef"},
		{"abcdef", "0xabcdef"},
		{" 0xAbc ", "0xabc"},
	}
	for _, tt := range tests {
		if got := normalizeAddress(tt.in); got != tt.want {
			t.Errorf("normalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
