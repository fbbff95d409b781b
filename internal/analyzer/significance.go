package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/numatrix/numatrix/internal/models"
)

// DefaultAlpha is the significance level below which uniformity is rejected.
const DefaultAlpha = 0.05

// Significance runs a chi-square goodness-of-fit test of the counts in r over
// codes 1..9 against a uniform distribution, and scores the target bucket
// with a normal approximation to the binomial.
//
// Bucket 0 is ignored, matching the nine-bucket expectation in r.
func Significance(r models.HypothesisResult, alpha float64) models.Significance {
	sig := models.Significance{
		DegreesOfFreedom: Buckets - 1,
		Alpha:            alpha,
		PValue:           1,
		Uniform:          true,
	}
	if r.Total == 0 || r.Expected == 0 {
		return sig
	}

	for code := 1; code <= Buckets; code++ {
		diff := float64(r.Counts[code]) - r.Expected
		sig.ChiSquare += diff * diff / r.Expected
	}
	sig.PValue = distuv.ChiSquared{K: float64(sig.DegreesOfFreedom)}.Survival(sig.ChiSquare)
	sig.Uniform = sig.PValue > alpha

	p := 1.0 / Buckets
	sd := math.Sqrt(float64(r.Total) * p * (1 - p))
	sig.ZScore = (float64(r.Observed) - r.Expected) / sd
	sig.ConcentrationRatio = float64(r.Observed) / r.Expected

	return sig
}
