package conv

import "testing"

func TestToRawString(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		{"string", "SH", "SH", true},
		{"empty string is missing", "", "", false},
		{"nil is missing", nil, "", false},
		{"float64", 3.14, "3.14", true},
		{"float64 integral", 14.0, "14", true},
		{"float32", float32(1.5), "1.5", true},
		{"int", 42, "42", true},
		{"int64", int64(-7), "-7", true},
		{"bool true", true, "1", true},
		{"bool false", false, "0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToRawString(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ToRawString(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ToRawString(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"14", 14, true},
		{" 14.5 ", 14.5, true},
		{"-3.2e2", -320, true},
		{"", 0, false},
		{"   ", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseFloat(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseFloat(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestToFloat64(t *testing.T) {
	if v, ok := ToFloat64(42); !ok || v != 42 {
		t.Errorf("ToFloat64(42) = (%v, %v)", v, ok)
	}
	if v, ok := ToFloat64(true); !ok || v != 1 {
		t.Errorf("ToFloat64(true) = (%v, %v)", v, ok)
	}
	// 字符串不做隐式转换，数值解析走 ParseFloat
	if _, ok := ToFloat64("3.5"); ok {
		t.Error("string must not convert implicitly")
	}
	if _, ok := ToFloat64([]int{1}); ok {
		t.Error("slice must not convert")
	}
}
