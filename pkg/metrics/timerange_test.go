package metrics

import (
	"testing"
	"time"
)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"6h", 6 * time.Hour},
		{"24h", 24 * time.Hour},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"bogus", 24 * time.Hour},
		{"", 24 * time.Hour},
		{"10x", 24 * time.Hour},
		{"0h", 24 * time.Hour},
		{"-1h", 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := ParseTimeRange(tt.in); got != tt.want {
			t.Errorf("ParseTimeRange(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1h", time.Hour},
		{"30m", 30 * time.Minute},
		{"1 hour", time.Hour},
		{"2 hours", 2 * time.Hour},
		{"30 minutes", 30 * time.Minute},
		{"1 day", 24 * time.Hour},
		{"", time.Hour},
		{"bogus", time.Hour},
		{"0m", time.Hour},
	}
	for _, tt := range tests {
		if got := ParseInterval(tt.in); got != tt.want {
			t.Errorf("ParseInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRangeInterval(t *testing.T) {
	if got := rangeInterval(24 * time.Hour); got != "86400 seconds" {
		t.Errorf("rangeInterval(24h) = %q", got)
	}
	if got := rangeInterval(time.Hour); got != "3600 seconds" {
		t.Errorf("rangeInterval(1h) = %q", got)
	}
}
