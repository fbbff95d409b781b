// Package analyzer maps dated event records to personal year codes and tests
// whether a target code occurs more often than a uniform spread would predict.
package analyzer

import (
	"github.com/numatrix/numatrix/internal/models"
	"github.com/numatrix/numatrix/internal/numerology"
)

const (
	// Buckets is the fixed number of codes (1..9) assumed by the uniform baseline.
	Buckets = 9
	// DefaultTargetCode is the code tested when callers do not pick one.
	DefaultTargetCode = 9
	// SupportFactor is how far above the uniform expectation the target count
	// must be for the hypothesis to count as supported.
	SupportFactor = 1.2
)

// DefaultReferenceDate stands in for a birth date when analyzing events
// collectively rather than per person.
var DefaultReferenceDate = models.NewDate(2000, 1, 1)

// MapRecordsToCodes computes the personal year code of reference for each
// record's year. Records whose date is missing or unparsable are dropped;
// the output keeps input order.
func MapRecordsToCodes(records []models.EventRecord, reference models.Date) []models.AnalysisRecord {
	out := make([]models.AnalysisRecord, 0, len(records))
	for _, rec := range records {
		date, err := models.ParseDate(rec.DateText)
		if err != nil {
			continue
		}
		out = append(out, models.AnalysisRecord{
			Date:     date,
			Year:     date.Year,
			Code:     numerology.PersonalYearCode(reference, date.Year),
			Label:    rec.Label,
			Category: rec.Category,
			Source:   rec.Source,
		})
	}
	return out
}

// CountByCode tabulates how many records carry each code. Only codes that
// occur are present as keys.
func CountByCode(analysis []models.AnalysisRecord) map[int]int {
	counts := make(map[int]int)
	for _, a := range analysis {
		counts[a.Code]++
	}
	return counts
}

// TestUniformDistribution compares the frequency of targetCode against the
// uniform expectation total/9. An empty input yields a zeroed result.
//
// Code 0 (from an all-zero date) is counted in its own bucket but the
// expectation still divides by nine.
func TestUniformDistribution(analysis []models.AnalysisRecord, targetCode int) models.HypothesisResult {
	result := models.HypothesisResult{
		Counts:     map[int]int{},
		TargetCode: targetCode,
	}
	if len(analysis) == 0 {
		return result
	}

	result.Total = len(analysis)
	result.Counts = CountByCode(analysis)
	result.Expected = float64(result.Total) / Buckets
	result.Observed = result.Counts[targetCode]
	result.Percentage = float64(result.Observed) / float64(result.Total) * 100
	result.Deviation = float64(result.Observed) - result.Expected
	result.Supported = float64(result.Observed) > result.Expected*SupportFactor
	return result
}
