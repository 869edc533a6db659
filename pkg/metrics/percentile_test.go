package metrics

import "testing"

func TestPercentileLinearInterpolation(t *testing.T) {
	values := []float64{100, 200, 300, 400}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 100},
		{50, 250},
		{75, 325},
		{95, 385},
		{100, 400},
	}
	for _, tt := range tests {
		if got := Percentile(values, tt.p); got != tt.want {
			t.Errorf("Percentile(%v, %v) = %v, want %v", values, tt.p, got, tt.want)
		}
	}
}

func TestPercentileUnsortedInput(t *testing.T) {
	values := []float64{400, 100, 300, 200}
	if got := Percentile(values, 50); got != 250 {
		t.Errorf("Percentile must sort its input, got %v", got)
	}
	// The caller's slice is left untouched.
	if values[0] != 400 {
		t.Errorf("input slice was mutated: %v", values)
	}
}

func TestPercentileEdgeCases(t *testing.T) {
	if got := Percentile(nil, 50); got != 0 {
		t.Errorf("empty input should yield 0, got %v", got)
	}
	if got := Percentile([]float64{42}, 99); got != 42 {
		t.Errorf("single value should yield itself, got %v", got)
	}
}

func TestRoundMetric(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"lcp", 1234.56, 1235},
		{"ttfb", 80.4, 80},
		{"cls", 0.05128, 0.051},
		{"cls", 0.2519, 0.252},
	}
	for _, tt := range tests {
		if got := RoundMetric(tt.name, tt.value); got != tt.want {
			t.Errorf("RoundMetric(%q, %v) = %v, want %v", tt.name, tt.value, got, tt.want)
		}
	}
}
