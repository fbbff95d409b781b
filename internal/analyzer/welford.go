package analyzer

import "math"

// runningStats accumulates mean and variance in one pass (Welford).
type runningStats struct {
	count int
	mean  float64
	m2    float64
}

func (s *runningStats) add(x float64) {
	s.count++
	delta := x - s.mean
	s.mean += delta / float64(s.count)
	delta2 := x - s.mean
	s.m2 += delta * delta2
}

// stdDev is the sample standard deviation; zero below two samples.
func (s *runningStats) stdDev() float64 {
	if s.count < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.count-1))
}
