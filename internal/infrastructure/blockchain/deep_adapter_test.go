package blockchain

import (
	"context"
	"math"
	"math/big"
	"testing"

	"go.uber.org/zap"

	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/infrastructure/config"
	"token-score-engine/internal/infrastructure/logger"
)

const deepTestToken = "0x1111111111111111111111111111111111111111"

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func testChainConfig() *config.ChainConfig {
	return &config.ChainConfig{
		LogBatchSize:         1000,
		ActivityFallbackSpan: 10000,
		HolderFallbackSpan:   50000,
	}
}

func transferAt(block uint64, from, to string) entity.AccountRecord {
	return entity.AccountRecord{
		BlockNumber: block,
		From:        from,
		To:          to,
	}
}

func TestDeepFetchActivity(t *testing.T) {
	chain := NewMockChainClient()
	chain.SetLatestBlock(900)
	chain.AddTransferEvent(transferAt(100, "0xaaa1", "0xbbb1"))
	chain.AddTransferEvent(transferAt(500, "0xaaa2", "0xccc1"))
	chain.AddTransferEvent(transferAt(800, "0xaaa3", "0xbbb1"))
	chain.SetCode("0xccc1", []byte{0x60, 0x80})

	source := NewDeepDataSource(chain, testChainConfig(), nopLogger())

	records, cursor, err := source.FetchActivity(context.Background(), deepTestToken, "", 1000)
	if err != nil {
		t.Fatalf("FetchActivity() error: %v", err)
	}
	if cursor != "" {
		t.Errorf("cursor = %q, want empty", cursor)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	for _, r := range records {
		wantContract := r.To == "0xccc1"
		if r.ToContract != wantContract {
			t.Errorf("record at block %d: ToContract = %v, want %v", r.BlockNumber, r.ToContract, wantContract)
		}
		if r.FromContract {
			t.Errorf("record at block %d: FromContract = true for EOA sender", r.BlockNumber)
		}
	}
}

func TestDeepFetchActivityNonEmptyCursor(t *testing.T) {
	chain := NewMockChainClient()
	chain.SetLatestBlock(900)
	chain.AddTransferEvent(transferAt(100, "0xaaa1", "0xbbb1"))

	source := NewDeepDataSource(chain, testChainConfig(), nopLogger())

	records, cursor, err := source.FetchActivity(context.Background(), deepTestToken, "page-2", 1000)
	if err != nil {
		t.Fatalf("FetchActivity() error: %v", err)
	}
	if len(records) != 0 || cursor != "" {
		t.Errorf("non-empty cursor returned %d records, cursor %q; want empty page", len(records), cursor)
	}
}

func TestDeepFetchActivityTruncatesNewestFirst(t *testing.T) {
	chain := NewMockChainClient()
	chain.SetLatestBlock(900)
	for block := uint64(100); block <= 500; block += 100 {
		chain.AddTransferEvent(transferAt(block, "0xaaa1", "0xbbb1"))
	}

	source := NewDeepDataSource(chain, testChainConfig(), nopLogger())

	records, _, err := source.FetchActivity(context.Background(), deepTestToken, "", 2)
	if err != nil {
		t.Fatalf("FetchActivity() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].BlockNumber != 500 || records[1].BlockNumber != 400 {
		t.Errorf("blocks = [%d, %d], want newest first [500, 400]",
			records[0].BlockNumber, records[1].BlockNumber)
	}
}

func TestDeepFetchHolders(t *testing.T) {
	chain := NewMockChainClient()
	chain.SetLatestBlock(900)
	chain.AddTransferEvent(transferAt(100, "0xaaa1", "0xbbb1"))
	chain.AddTransferEvent(transferAt(200, "0xaaa1", "0xccc1"))
	chain.AddTransferEvent(transferAt(300, "0xbbb1", "0xddd1"))
	chain.SetBalance("0xaaa1", big.NewInt(600))
	chain.SetBalance("0xbbb1", big.NewInt(300))
	chain.SetBalance("0xccc1", big.NewInt(100))
	// 0xddd1 sold out; zero balance drops it from the holder set
	chain.SetCode("0xaaa1", []byte{0x60})

	source := NewDeepDataSource(chain, testChainConfig(), nopLogger())

	holders, total, err := source.FetchHolders(context.Background(), deepTestToken, 100)
	if err != nil {
		t.Fatalf("FetchHolders() error: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(holders) != 3 {
		t.Fatalf("got %d holders, want 3", len(holders))
	}

	wantOrder := []struct {
		address    string
		percentage float64
		isContract bool
	}{
		{"0xaaa1", 60, true},
		{"0xbbb1", 30, false},
		{"0xccc1", 10, false},
	}
	for i, want := range wantOrder {
		h := holders[i]
		if h.Address != want.address {
			t.Errorf("holders[%d].Address = %q, want %q", i, h.Address, want.address)
		}
		if math.Abs(h.Percentage-want.percentage) > 1e-9 {
			t.Errorf("holders[%d].Percentage = %v, want %v", i, h.Percentage, want.percentage)
		}
		if h.IsContract != want.isContract {
			t.Errorf("holders[%d].IsContract = %v, want %v", i, h.IsContract, want.isContract)
		}
		if h.Rank != i+1 {
			t.Errorf("holders[%d].Rank = %d, want %d", i, h.Rank, i+1)
		}
	}
}

func TestDeepFetchHoldersTotalBeforeTruncation(t *testing.T) {
	chain := NewMockChainClient()
	chain.SetLatestBlock(900)
	chain.AddTransferEvent(transferAt(100, "0xaaa1", "0xbbb1"))
	chain.AddTransferEvent(transferAt(200, "0xccc1", "0xddd1"))
	chain.SetBalance("0xaaa1", big.NewInt(400))
	chain.SetBalance("0xbbb1", big.NewInt(300))
	chain.SetBalance("0xccc1", big.NewInt(200))
	chain.SetBalance("0xddd1", big.NewInt(100))

	source := NewDeepDataSource(chain, testChainConfig(), nopLogger())

	holders, total, err := source.FetchHolders(context.Background(), deepTestToken, 2)
	if err != nil {
		t.Fatalf("FetchHolders() error: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if len(holders) != 2 {
		t.Fatalf("got %d holders, want 2 after truncation", len(holders))
	}
	if holders[0].Address != "0xaaa1" || holders[1].Address != "0xbbb1" {
		t.Errorf("top holders = [%s, %s], want [0xaaa1, 0xbbb1]",
			holders[0].Address, holders[1].Address)
	}
}

func TestScanTransferEventsHalvesOnRangeRejection(t *testing.T) {
	chain := NewMockChainClient()
	chain.SetLatestBlock(999)
	chain.MaxLogRange = 600
	chain.AddTransferEvent(transferAt(50, "0xaaa1", "0xbbb1"))
	chain.AddTransferEvent(transferAt(700, "0xaaa2", "0xbbb2"))

	source := NewDeepDataSource(chain, testChainConfig(), nopLogger())

	records, err := source.scanTransferEvents(context.Background(), deepTestToken, 0, 999)
	if err != nil {
		t.Fatalf("scanTransferEvents() error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2 after halved retries", len(records))
	}
}

func TestScanTransferEventsSkipsWhenHalvedQueryFails(t *testing.T) {
	chain := NewMockChainClient()
	chain.SetLatestBlock(999)
	chain.MaxLogRange = 400
	chain.AddTransferEvent(transferAt(50, "0xaaa1", "0xbbb1"))
	chain.AddTransferEvent(transferAt(600, "0xaaa2", "0xbbb2"))

	source := NewDeepDataSource(chain, testChainConfig(), nopLogger())

	// The full batch and its halved retry both exceed the node limit, so
	// the first half of the span is skipped as a coverage gap
	records, err := source.scanTransferEvents(context.Background(), deepTestToken, 0, 999)
	if err != nil {
		t.Fatalf("scanTransferEvents() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (gap blocks skipped)", len(records))
	}
	if records[0].BlockNumber != 600 {
		t.Errorf("surviving record at block %d, want 600", records[0].BlockNumber)
	}
}

func TestScanTransferEventsSkipsTinyRange(t *testing.T) {
	chain := NewMockChainClient()
	chain.SetLatestBlock(150)
	chain.MaxLogRange = 100
	chain.AddTransferEvent(transferAt(50, "0xaaa1", "0xbbb1"))

	source := NewDeepDataSource(chain, testChainConfig(), nopLogger())

	records, err := source.scanTransferEvents(context.Background(), deepTestToken, 0, 150)
	if err != nil {
		t.Fatalf("scanTransferEvents() error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0 when the range cannot be halved", len(records))
	}
}

func TestScanTransferEventsContextCancellation(t *testing.T) {
	chain := NewMockChainClient()
	chain.SetLatestBlock(999)
	chain.MaxLogRange = 400

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := NewDeepDataSource(chain, testChainConfig(), nopLogger())

	if _, err := source.scanTransferEvents(ctx, deepTestToken, 0, 999); err == nil {
		t.Fatal("scanTransferEvents() with cancelled context returned nil error")
	}
}
