package entity

import (
	"strings"
)

// ScoreRequest describes one token scoring invocation
type ScoreRequest struct {
	TokenAddress    string       `json:"token_address"`
	Mode            AnalysisMode `json:"mode"`
	TimeWindowHours int          `json:"time_window_hours"`
	Limit           int          `json:"limit"`
}

// Normalize lowercases the address and defaults the mode. Window and
// limit defaults come from configuration, not from here.
func (r *ScoreRequest) Normalize() {
	r.TokenAddress = strings.ToLower(strings.TrimSpace(r.TokenAddress))
	if r.Mode == "" {
		r.Mode = ModeAuto
	}
}

// IsValidAddress checks the 0x-prefixed 20-byte hex address format
func IsValidAddress(address string) bool {
	address = strings.ToLower(address)
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		return false
	}
	for _, c := range address[2:] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
