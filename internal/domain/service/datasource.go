package service

import (
	"context"
	"math/big"

	"token-score-engine/internal/domain/entity"
)

// DataSource is the uniform contract over the two data-acquisition paths:
// the fast indexed provider and the deep on-chain scan. The mode selector
// holds whichever variant is active; nothing else branches on provider
// identity.
type DataSource interface {
	// Name tags results with the path that produced them (fast or deep)
	Name() string

	// FetchHolders returns the top holders for a token ranked by balance
	// descending, plus the total holder count known to the source. Fast
	// providers report the indexed total; the deep path reports the count
	// of non-zero balances it observed.
	FetchHolders(ctx context.Context, tokenAddress string, pageSize int) ([]entity.TokenHolder, int, error)

	// FetchActivity returns one page of interaction records in cursor
	// order. An empty nextCursor means no further pages.
	FetchActivity(ctx context.Context, tokenAddress string, cursor string, pageSize int) ([]entity.AccountRecord, string, error)
}

// OwnerState is the tri-state outcome of an owner() lookup. A revert or a
// missing function is legitimate absence, not a failure; transport errors
// are reported separately so the two are never conflated.
type OwnerState int

const (
	OwnerAbsent OwnerState = iota
	OwnerPresent
)

// OwnerLookup is the result of reading a contract's owner() function
type OwnerLookup struct {
	State   OwnerState
	Address string
}

// Renounced reports whether ownership was transferred to the zero address
func (o OwnerLookup) Renounced() bool {
	return o.State == OwnerPresent && o.Address == entity.ZeroAddress
}

// ProxyInfo describes a contract's EIP-1967 proxy slots
type ProxyInfo struct {
	IsProxy        bool
	Implementation string
	Admin          string
}

// AdminRenounced reports whether the proxy admin slot holds the zero
// address (upgrades disabled)
func (p ProxyInfo) AdminRenounced() bool {
	return p.Admin == "" || p.Admin == entity.ZeroAddress
}

// ChainStateReader is the direct-chain capability set used by the deep
// data path and the permission analyzer: event replay, bytecode checks,
// storage-slot reads and simple contract calls.
type ChainStateReader interface {
	// LatestBlock returns the current chain head number
	LatestBlock(ctx context.Context) (uint64, error)

	// Code returns the deployed bytecode at an address; empty means EOA
	Code(ctx context.Context, address string) ([]byte, error)

	// IsContract reports whether an address has deployed bytecode
	IsContract(ctx context.Context, address string) (bool, error)

	// TransferEvents returns decoded Transfer logs for a token over an
	// inclusive block range. Implementations surface an RPC "range too
	// large" rejection as an error so callers can halve the range.
	TransferEvents(ctx context.Context, tokenAddress string, fromBlock, toBlock uint64) ([]entity.AccountRecord, error)

	// BalanceOf returns the token balance of a holder
	BalanceOf(ctx context.Context, tokenAddress, holder string) (*big.Int, error)

	// TotalSupply returns the token's total supply in human units
	// (already divided by decimals)
	TotalSupply(ctx context.Context, tokenAddress string) (float64, error)

	// Owner performs the tri-state owner() lookup
	Owner(ctx context.Context, tokenAddress string) (OwnerLookup, error)

	// Proxy reads the EIP-1967 implementation and admin slots
	Proxy(ctx context.Context, tokenAddress string) (ProxyInfo, error)
}
