package entity

import (
	"testing"
)

func TestOverallRiskLevel(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  RiskLevel
	}{
		{"top score", 100, RiskLevelLow},
		{"low boundary", 80, RiskLevelLow},
		{"just under low", 79.99, RiskLevelMedium},
		{"medium boundary", 60, RiskLevelMedium},
		{"high boundary", 40, RiskLevelHigh},
		{"just under high", 39.99, RiskLevelExtreme},
		{"zero", 0, RiskLevelExtreme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallRiskLevel(tt.score); got != tt.want {
				t.Errorf("OverallRiskLevel(%v) = %v, want %v", tt.score, got, tt.want)
			}
		})
	}
}

func TestGenerateRiskTags(t *testing.T) {
	tests := []struct {
		name       string
		eoa        RiskLevel
		holder     RiskLevel
		permission RiskLevel
		wantKeys   []RiskTagKey
	}{
		{
			name:       "all healthy",
			eoa:        RiskLevelLow,
			holder:     RiskLevelLow,
			permission: RiskLevelLow,
			wantKeys:   []RiskTagKey{TagOrganicGrowth, TagDistributed, TagSafeContract},
		},
		{
			name:       "all worst",
			eoa:        RiskLevelHigh,
			holder:     RiskLevelExtreme,
			permission: RiskLevelHigh,
			wantKeys:   []RiskTagKey{TagLowActivity, TagExtremeConcentration, TagRugRisk},
		},
		{
			name:       "unknown levels produce no tags",
			eoa:        RiskLevelUnknown,
			holder:     RiskLevelUnknown,
			permission: RiskLevelUnknown,
			wantKeys:   nil,
		},
		{
			name:       "mixed with one unknown",
			eoa:        RiskLevelMedium,
			holder:     RiskLevelUnknown,
			permission: RiskLevelMedium,
			wantKeys:   []RiskTagKey{TagModerateActivity, TagLimitedRisk},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := GenerateRiskTags(tt.eoa, tt.holder, tt.permission)
			if len(tags) != len(tt.wantKeys) {
				t.Fatalf("got %d tags, want %d", len(tags), len(tt.wantKeys))
			}
			for i, key := range tt.wantKeys {
				if tags[i].Key != key {
					t.Errorf("tag[%d] = %v, want %v", i, tags[i].Key, key)
				}
			}
		})
	}
}

func TestGenerateRiskTagsOrdering(t *testing.T) {
	// Ordering is fixed regardless of severity: activity, holder, permission
	tags := GenerateRiskTags(RiskLevelHigh, RiskLevelLow, RiskLevelMedium)
	wantCategories := []string{"activity", "holder", "permission"}
	for i, category := range wantCategories {
		if tags[i].Category != category {
			t.Errorf("tag[%d].Category = %q, want %q", i, tags[i].Category, category)
		}
	}
}

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"valid lowercase", "0x3bd359c1119da7da1d913d1c4d2b7c461115433a", true},
		{"valid mixed case", "0x3bd359C1119dA7Da1D913D1C4D2B7c461115433A", true},
		{"zero address", "0x0000000000000000000000000000000000000000", true},
		{"missing prefix", "3bd359c1119da7da1d913d1c4d2b7c461115433a", false},
		{"too short", "0x3bd359c1119da7da1d913d1c4d2b7c46111543", false},
		{"too long", "0x3bd359c1119da7da1d913d1c4d2b7c461115433a00", false},
		{"non-hex characters", "0x3bd359c1119da7da1d913d1c4d2b7c46111543zz", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidAddress(tt.address); got != tt.want {
				t.Errorf("IsValidAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestScoreRequestNormalize(t *testing.T) {
	req := ScoreRequest{TokenAddress: "  0xABCdef0000000000000000000000000000000001 "}
	req.Normalize()

	if req.TokenAddress != "0xabcdef0000000000000000000000000000000001" {
		t.Errorf("address not normalized: %q", req.TokenAddress)
	}
	if req.Mode != ModeAuto {
		t.Errorf("default mode = %v, want %v", req.Mode, ModeAuto)
	}
	// Window and limit stay unset; the scoring service fills them from config
	if req.TimeWindowHours != 0 || req.Limit != 0 {
		t.Errorf("Normalize touched window/limit: %d/%d", req.TimeWindowHours, req.Limit)
	}
}

func TestAccountRecordParticipants(t *testing.T) {
	tests := []struct {
		name   string
		record AccountRecord
		want   int
	}{
		{"both real", AccountRecord{From: "0xaa", To: "0xbb"}, 2},
		{"mint from zero", AccountRecord{From: ZeroAddress, To: "0xbb"}, 1},
		{"burn to zero", AccountRecord{From: "0xaa", To: ZeroAddress}, 1},
		{"both zero", AccountRecord{From: ZeroAddress, To: ZeroAddress}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Participants(); len(got) != tt.want {
				t.Errorf("Participants() returned %d addresses, want %d", len(got), tt.want)
			}
		})
	}
}

func TestRiskLevelDisplayFallback(t *testing.T) {
	if d := RiskLevel("bogus").Display(); d.Label != "Unknown" {
		t.Errorf("unexpected display for unmapped level: %+v", d)
	}
	if d := RiskLevelLow.Display(); d.Label != "Low Risk" {
		t.Errorf("unexpected display for low risk: %+v", d)
	}
}
