package playlist

import "testing"

func TestParseISO8601Duration(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"PT1H2M3S", 3723},
		{"PT45S", 45},
		{"PT2M", 120},
		{"PT1H", 3600},
		{"PT10M30S", 630},
		{"PT0S", 0},
		{"", 0},
		{"garbage", 0},
		{"P1DT2H", 0},
	}
	for _, tt := range tests {
		if got := ParseISO8601Duration(tt.input); got != tt.want {
			t.Errorf("ParseISO8601Duration(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
