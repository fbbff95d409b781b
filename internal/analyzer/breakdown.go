package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/numatrix/numatrix/internal/models"
)

// GroupBy selects how records are partitioned for a breakdown.
type GroupBy string

const (
	ByDecade   GroupBy = "decade"
	ByCategory GroupBy = "category"
	BySource   GroupBy = "source"
)

// AllGroupings lists every supported breakdown dimension.
var AllGroupings = []GroupBy{ByDecade, ByCategory, BySource}

// ParseGroupBy validates a breakdown dimension name.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case ByDecade, ByCategory, BySource:
		return g, nil
	default:
		return "", fmt.Errorf("unknown breakdown %q: must be one of decade, category, source", s)
	}
}

const unknownKey = "unknown"

func groupKey(a models.AnalysisRecord, by GroupBy) string {
	switch by {
	case ByDecade:
		return fmt.Sprintf("%ds", a.Year/10*10)
	case ByCategory:
		if a.Category == "" {
			return unknownKey
		}
		return a.Category
	case BySource:
		if a.Source == "" {
			return unknownKey
		}
		return a.Source
	}
	return unknownKey
}

// Breakdown runs TestUniformDistribution separately for each group. Groups
// with fewer than minSize records are left out. Results are sorted by key.
func Breakdown(analysis []models.AnalysisRecord, by GroupBy, targetCode, minSize int) []models.GroupResult {
	groups := make(map[string][]models.AnalysisRecord)
	for _, a := range analysis {
		key := groupKey(a, by)
		groups[key] = append(groups[key], a)
	}

	results := make([]models.GroupResult, 0, len(groups))
	for key, members := range groups {
		if len(members) < minSize {
			continue
		}
		results = append(results, models.GroupResult{
			Key:    key,
			Result: TestUniformDistribution(members, targetCode),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Key < results[j].Key
	})
	return results
}

// Dispersion summarizes how much the target percentage varies across groups.
type Dispersion struct {
	Groups int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// TargetDispersion computes the spread of target percentages over groups.
func TargetDispersion(groups []models.GroupResult) Dispersion {
	var rs runningStats
	d := Dispersion{Groups: len(groups)}
	for i, g := range groups {
		pct := g.Result.Percentage
		rs.add(pct)
		if i == 0 || pct < d.Min {
			d.Min = pct
		}
		if i == 0 || pct > d.Max {
			d.Max = pct
		}
	}
	d.Mean = rs.mean
	d.StdDev = rs.stdDev()
	return d
}
