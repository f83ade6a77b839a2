package blockchain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func codeWithSelectors(signatures ...string) []byte {
	code := []byte{0x60, 0x80, 0x60, 0x40, 0x52}
	for _, sig := range signatures {
		sum := crypto.Keccak256([]byte(sig))
		code = append(code, sum[:4]...)
		code = append(code, 0x14) // EQ opcode, as in a dispatch table
	}
	return code
}

func TestScanDangerousFunctions(t *testing.T) {
	tests := []struct {
		name       string
		code       []byte
		wantCount  int
		wantFirst  string
		categories []string
	}{
		{
			name:      "empty bytecode",
			code:      nil,
			wantCount: 0,
		},
		{
			name:      "clean bytecode",
			code:      codeWithSelectors(),
			wantCount: 0,
		},
		{
			name:       "mint selector",
			code:       codeWithSelectors("mint(address,uint256)"),
			wantCount:  1,
			wantFirst:  "mint(address,uint256)",
			categories: []string{"mint"},
		},
		{
			name:       "several categories",
			code:       codeWithSelectors("mint(uint256)", "pause()", "blacklist(address)"),
			wantCount:  3,
			categories: []string{"blacklist", "mint", "setPause"},
		},
		{
			name:       "both upgrade variants",
			code:       codeWithSelectors("upgradeTo(address)", "upgradeToAndCall(address,bytes)"),
			wantCount:  2,
			categories: []string{"upgradeTo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := ScanDangerousFunctions(tt.code)
			if len(found) != tt.wantCount {
				t.Fatalf("found %d functions, want %d: %+v", len(found), tt.wantCount, found)
			}
			if tt.wantFirst != "" && found[0].Signature != tt.wantFirst {
				t.Errorf("first signature = %q, want %q", found[0].Signature, tt.wantFirst)
			}

			categories := RiskCategories(found)
			if len(categories) != len(tt.categories) {
				t.Fatalf("categories = %v, want %v", categories, tt.categories)
			}
			for i, c := range tt.categories {
				if categories[i] != c {
					t.Errorf("categories[%d] = %q, want %q", i, categories[i], c)
				}
			}
		})
	}
}

func TestScanDangerousFunctionsDeterministicOrder(t *testing.T) {
	code := codeWithSelectors("pause()", "mint(uint256)", "setFee(uint256)")

	first := ScanDangerousFunctions(code)
	for i := 0; i < 5; i++ {
		again := ScanDangerousFunctions(code)
		for j := range first {
			if first[j].Signature != again[j].Signature {
				t.Fatal("scan order is not deterministic")
			}
		}
	}
}

func TestIsRangeTooLarge(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"range phrase", &mockRangeError{}, true},
		{"unrelated error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRangeTooLarge(tt.err); got != tt.want {
				t.Errorf("IsRangeTooLarge(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
