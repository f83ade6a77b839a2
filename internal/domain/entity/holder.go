package entity

import (
	"math/big"
)

// ZeroAddress denotes mint/burn in transfer events, never a real participant
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NoPercentage is the sentinel for a holder whose ownership share is unknown.
// Fast providers return balances without a supply basis; callers must either
// recompute from total supply or treat the share as unknown, never as zero.
const NoPercentage = -1.0

// TokenHolder represents one address holding a balance of the scored token
type TokenHolder struct {
	Address          string   `json:"address"`
	Balance          *big.Int `json:"balance"`
	BalanceFormatted float64  `json:"balance_formatted"`
	Percentage       float64  `json:"percentage"` // [0,100] or NoPercentage
	Rank             int      `json:"rank"`
	IsContract       bool     `json:"is_contract"`
}

// HasPercentage reports whether the ownership share is known
func (h *TokenHolder) HasPercentage() bool {
	return h.Percentage >= 0
}

// IsEOA reports whether the holder is an externally owned account
func (h *TokenHolder) IsEOA() bool {
	return !h.IsContract
}
