package analyzer

import (
	"math"
	"testing"
)

func TestSignificance_Uniform(t *testing.T) {
	var codes []int
	for c := 1; c <= 9; c++ {
		codes = append(codes, c, c, c)
	}
	sig := Significance(TestUniformDistribution(analysisWithCodes(codes...), 9), DefaultAlpha)

	if sig.ChiSquare != 0 {
		t.Errorf("chi-square = %f, want 0", sig.ChiSquare)
	}
	if math.Abs(sig.PValue-1) > 1e-9 {
		t.Errorf("p-value = %f, want 1", sig.PValue)
	}
	if !sig.Uniform {
		t.Error("perfectly uniform counts should be uniform")
	}
	if sig.ZScore != 0 {
		t.Errorf("z-score = %f, want 0", sig.ZScore)
	}
	if sig.ConcentrationRatio != 1 {
		t.Errorf("concentration ratio = %f, want 1", sig.ConcentrationRatio)
	}
	if sig.DegreesOfFreedom != 8 {
		t.Errorf("degrees of freedom = %d, want 8", sig.DegreesOfFreedom)
	}
}

func TestSignificance_Skewed(t *testing.T) {
	codes := make([]int, 90)
	for i := range codes {
		codes[i] = 9
	}
	sig := Significance(TestUniformDistribution(analysisWithCodes(codes...), 9), DefaultAlpha)

	// expected 10 per bucket: 8 empty buckets contribute 10 each, bucket 9 contributes 640.
	if math.Abs(sig.ChiSquare-720) > 1e-9 {
		t.Errorf("chi-square = %f, want 720", sig.ChiSquare)
	}
	if sig.PValue > 1e-10 {
		t.Errorf("p-value = %g, want ~0", sig.PValue)
	}
	if sig.Uniform {
		t.Error("fully concentrated counts should not be uniform")
	}
	wantZ := 80 / math.Sqrt(90.0*(1.0/9)*(8.0/9))
	if math.Abs(sig.ZScore-wantZ) > 1e-9 {
		t.Errorf("z-score = %f, want %f", sig.ZScore, wantZ)
	}
	if math.Abs(sig.ConcentrationRatio-9) > 1e-9 {
		t.Errorf("concentration ratio = %f, want 9", sig.ConcentrationRatio)
	}
}

func TestSignificance_CriticalValue(t *testing.T) {
	// The 95th percentile of chi-square with 8 degrees of freedom is ~15.507.
	// Counts chosen so the statistic lands on either side of it with expected 10.
	tests := []struct {
		name    string
		counts  []int
		uniform bool
	}{
		{"below critical", []int{14, 6, 10, 10, 10, 10, 10, 10, 10}, true},  // 3.2
		{"above critical", []int{20, 2, 10, 10, 10, 10, 10, 13, 5}, false}, // 19.8
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var codes []int
			for i, n := range tt.counts {
				for j := 0; j < n; j++ {
					codes = append(codes, i+1)
				}
			}
			sig := Significance(TestUniformDistribution(analysisWithCodes(codes...), 9), DefaultAlpha)
			if sig.Uniform != tt.uniform {
				t.Errorf("uniform = %v (chi2=%.2f p=%.4f), want %v", sig.Uniform, sig.ChiSquare, sig.PValue, tt.uniform)
			}
		})
	}
}

func TestSignificance_Empty(t *testing.T) {
	sig := Significance(TestUniformDistribution(nil, 9), DefaultAlpha)
	if sig.PValue != 1 || !sig.Uniform || sig.ChiSquare != 0 {
		t.Errorf("empty input: %+v", sig)
	}
	if sig.Alpha != DefaultAlpha {
		t.Errorf("alpha = %f, want %f", sig.Alpha, DefaultAlpha)
	}
}
