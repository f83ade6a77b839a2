package blockchain

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// dangerousFunctions maps risk categories to the function signatures that
// give an owner rug-pull leverage: supply manipulation, fee changes,
// transfer limits, upgrades, pausing, blacklisting and router swaps.
var dangerousFunctions = map[string][]string{
	"mint":      {"mint(address,uint256)", "mint(uint256)"},
	"burn":      {"burn(address,uint256)", "burn(uint256)"},
	"setTax":    {"setTaxFee(uint256)", "setTax(uint256)", "setFee(uint256)"},
	"setMaxTx":  {"setMaxTxAmount(uint256)", "setMaxTransaction(uint256)"},
	"upgradeTo": {"upgradeTo(address)", "upgradeToAndCall(address,bytes)"},
	"setPause":  {"pause()", "unpause()"},
	"blacklist": {"blacklist(address)", "addToBlacklist(address)", "setBlacklist(address,bool)"},
	"setRouter": {"setRouter(address)", "setDexRouter(address)"},
}

// selectorEntry is one precomputed 4-byte selector with its origin
type selectorEntry struct {
	category  string
	signature string
	selector  string // 8 hex chars, no 0x prefix
}

var selectorTable = buildSelectorTable()

func buildSelectorTable() []selectorEntry {
	var entries []selectorEntry
	for category, signatures := range dangerousFunctions {
		for _, sig := range signatures {
			sum := crypto.Keccak256([]byte(sig))
			entries = append(entries, selectorEntry{
				category:  category,
				signature: sig,
				selector:  hex.EncodeToString(sum[:4]),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].signature < entries[j].signature
	})
	return entries
}

// DangerousFunction is one risky selector found in deployed bytecode
type DangerousFunction struct {
	Category  string `json:"category"`
	Signature string `json:"signature"`
	Selector  string `json:"selector"`
}

// ScanDangerousFunctions searches deployed bytecode for the 4-byte
// selectors of known risky functions. Matching is a substring search over
// the hex encoding; dispatch tables embed selectors as literals so this
// catches them without disassembly.
func ScanDangerousFunctions(bytecode []byte) []DangerousFunction {
	if len(bytecode) == 0 {
		return nil
	}

	hexCode := hex.EncodeToString(bytecode)

	var found []DangerousFunction
	for _, entry := range selectorTable {
		if strings.Contains(hexCode, entry.selector) {
			found = append(found, DangerousFunction{
				Category:  entry.category,
				Signature: entry.signature,
				Selector:  "0x" + entry.selector,
			})
		}
	}
	return found
}

// RiskCategories returns the distinct categories among detected functions,
// sorted for stable output
func RiskCategories(functions []DangerousFunction) []string {
	seen := make(map[string]struct{})
	for _, fn := range functions {
		seen[fn.Category] = struct{}{}
	}

	categories := make([]string, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}
