package units

import "testing"

func TestIsValidCapacity(t *testing.T) {
	tests := []struct {
		unit string
		want bool
	}{
		{GW, true},
		{MW, true},
		{"kW", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidCapacity(tt.unit); got != tt.want {
			t.Errorf("IsValidCapacity(%q) = %v, want %v", tt.unit, got, tt.want)
		}
	}
}

func TestConvertCapacity(t *testing.T) {
	tests := []struct {
		name   string
		capGW  float64
		target string
		want   float64
	}{
		{"gw to mw", 1.5, MW, 1500},
		{"gw to gw", 2.0, GW, 2.0},
		{"unknown unit falls back to gw", 2.0, "bogus", 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertCapacity(tt.capGW, tt.target); got != tt.want {
				t.Errorf("ConvertCapacity(%v, %q) = %v, want %v", tt.capGW, tt.target, got, tt.want)
			}
		})
	}
}

func TestConvertActivity(t *testing.T) {
	if got := ConvertActivity(3.6, TWH); got != 1.0 {
		t.Errorf("ConvertActivity(3.6, TWh) = %v, want 1.0", got)
	}
	if got := ConvertActivity(7.2, PJ); got != 7.2 {
		t.Errorf("ConvertActivity(7.2, PJ) = %v, want 7.2", got)
	}
}
