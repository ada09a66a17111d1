package core

import "testing"

func TestParseNormType(t *testing.T) {
	tests := []struct {
		input   string
		want    NormType
		wantErr bool
	}{
		{"ZSCORE", NormZScore, false},
		{"zscore", NormZScore, false},
		{" Woe_ZScore ", NormWoeZScore, false},
		{"WEIGHT_WOE", NormWeightWoe, false},
		{"OLD_ZSCALE", NormOldZScale, false},
		{"", "", true},
		{"MINMAX", "", true},
	}

	for _, tt := range tests {
		got, err := ParseNormType(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseNormType(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseNormType(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseNormType(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNormType_IsWoe(t *testing.T) {
	woe := []NormType{NormWoe, NormWeightWoe, NormWoeZScore, NormWoeZScale, NormWeightWoeZScore, NormWeightWoeZScale}
	for _, nt := range woe {
		if !nt.IsWoe() {
			t.Errorf("%v should be a WOE mode", nt)
		}
	}
	notWoe := []NormType{NormZScore, NormZScale, NormOldZScore, NormOldZScale, NormHybrid, NormWeightHybrid}
	for _, nt := range notWoe {
		if nt.IsWoe() {
			t.Errorf("%v should not be a WOE mode", nt)
		}
	}
}

func TestNormType_IsWeighted(t *testing.T) {
	if !NormWeightWoe.IsWeighted() || !NormWeightWoeZScore.IsWeighted() {
		t.Error("weighted WOE modes should report IsWeighted")
	}
	if NormWoe.IsWeighted() || NormZScore.IsWeighted() {
		t.Error("non-weighted modes should not report IsWeighted")
	}
}
