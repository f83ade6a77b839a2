package entity

// AccountRecord represents one on-chain interaction with the scored token.
// Records come either from the indexed provider (with contract labels
// already resolved) or from a transfer-event replay (labels resolved later
// via bytecode checks).
type AccountRecord struct {
	TxHash       string `json:"tx_hash"`
	BlockNumber  uint64 `json:"block_number"`
	Timestamp    int64  `json:"timestamp"` // epoch milliseconds
	From         string `json:"from"`
	To           string `json:"to"`
	FromContract bool   `json:"from_contract"`
	ToContract   bool   `json:"to_contract"`
	Method       string `json:"method,omitempty"`
}

// Participants returns the non-zero addresses involved in the record.
// The zero address marks mint/burn and is excluded from every address-set
// computation.
func (r *AccountRecord) Participants() []string {
	addrs := make([]string, 0, 2)
	if r.From != "" && r.From != ZeroAddress {
		addrs = append(addrs, r.From)
	}
	if r.To != "" && r.To != ZeroAddress {
		addrs = append(addrs, r.To)
	}
	return addrs
}
