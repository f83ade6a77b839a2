package blockchain

import (
	"context"
	"math/big"
	"strings"

	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/domain/service"
)

// MockChainClient provides an in-memory ChainStateReader for testing
type MockChainClient struct {
	latestBlock uint64
	code        map[string][]byte
	events      []entity.AccountRecord
	balances    map[string]*big.Int
	totalSupply float64
	owner       service.OwnerLookup
	ownerErr    error
	proxy       service.ProxyInfo

	// MaxLogRange simulates an RPC node rejecting wide log queries
	MaxLogRange uint64
}

// NewMockChainClient creates a mock chain client with empty state
func NewMockChainClient() *MockChainClient {
	return &MockChainClient{
		code:     make(map[string][]byte),
		balances: make(map[string]*big.Int),
		owner:    service.OwnerLookup{State: service.OwnerAbsent},
	}
}

// SetLatestBlock sets the simulated chain head
func (mc *MockChainClient) SetLatestBlock(number uint64) {
	mc.latestBlock = number
}

// SetCode sets deployed bytecode for an address
func (mc *MockChainClient) SetCode(address string, code []byte) {
	mc.code[strings.ToLower(address)] = code
}

// AddTransferEvent records an event returned by TransferEvents
func (mc *MockChainClient) AddTransferEvent(record entity.AccountRecord) {
	mc.events = append(mc.events, record)
}

// SetBalance sets the token balance for a holder
func (mc *MockChainClient) SetBalance(holder string, balance *big.Int) {
	mc.balances[strings.ToLower(holder)] = balance
}

// SetTotalSupply sets the human-unit total supply
func (mc *MockChainClient) SetTotalSupply(supply float64) {
	mc.totalSupply = supply
}

// SetOwner sets the owner() lookup result
func (mc *MockChainClient) SetOwner(lookup service.OwnerLookup, err error) {
	mc.owner = lookup
	mc.ownerErr = err
}

// SetProxy sets the EIP-1967 slot contents
func (mc *MockChainClient) SetProxy(info service.ProxyInfo) {
	mc.proxy = info
}

func (mc *MockChainClient) LatestBlock(ctx context.Context) (uint64, error) {
	return mc.latestBlock, nil
}

func (mc *MockChainClient) Code(ctx context.Context, address string) ([]byte, error) {
	return mc.code[strings.ToLower(address)], nil
}

func (mc *MockChainClient) IsContract(ctx context.Context, address string) (bool, error) {
	return len(mc.code[strings.ToLower(address)]) > 0, nil
}

func (mc *MockChainClient) TransferEvents(ctx context.Context, tokenAddress string, fromBlock, toBlock uint64) ([]entity.AccountRecord, error) {
	if mc.MaxLogRange > 0 && toBlock-fromBlock+1 > mc.MaxLogRange {
		return nil, &mockRangeError{}
	}

	var matched []entity.AccountRecord
	for _, ev := range mc.events {
		if ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			matched = append(matched, ev)
		}
	}
	return matched, nil
}

func (mc *MockChainClient) BalanceOf(ctx context.Context, tokenAddress, holder string) (*big.Int, error) {
	if balance, ok := mc.balances[strings.ToLower(holder)]; ok {
		return balance, nil
	}
	return big.NewInt(0), nil
}

func (mc *MockChainClient) TotalSupply(ctx context.Context, tokenAddress string) (float64, error) {
	return mc.totalSupply, nil
}

func (mc *MockChainClient) Owner(ctx context.Context, tokenAddress string) (service.OwnerLookup, error) {
	return mc.owner, mc.ownerErr
}

func (mc *MockChainClient) Proxy(ctx context.Context, tokenAddress string) (service.ProxyInfo, error) {
	return mc.proxy, nil
}

type mockRangeError struct{}

func (e *mockRangeError) Error() string { return "query exceeds max block range too large" }
