package models

import (
	"errors"
	"math"
	"time"
)

// HypothesisResult summarizes how often a target code occurs compared with a
// uniform spread over the nine codes 1 through 9.
type HypothesisResult struct {
	Total      int         `json:"total_events" yaml:"total_events"`
	Counts     map[int]int `json:"counts_by_code" yaml:"counts_by_code"`
	Expected   float64     `json:"expected_uniform" yaml:"expected_uniform"`
	TargetCode int         `json:"target_code" yaml:"target_code"`
	Observed   int         `json:"target_count" yaml:"target_count"`
	Percentage float64     `json:"target_percentage" yaml:"target_percentage"`
	Deviation  float64     `json:"deviation" yaml:"deviation"`
	Supported  bool        `json:"hypothesis_supported" yaml:"hypothesis_supported"`
}

// Validate checks that the result is internally consistent.
func (h *HypothesisResult) Validate() error {
	if h.Total < 0 {
		return errors.New("total must not be negative")
	}
	sum := 0
	for _, c := range h.Counts {
		if c < 0 {
			return errors.New("counts must not be negative")
		}
		sum += c
	}
	if sum != h.Total {
		return errors.New("counts must sum to total")
	}
	if h.Observed != h.Counts[h.TargetCode] {
		return errors.New("observed must equal the target code count")
	}
	if math.Abs(h.Deviation-(float64(h.Observed)-h.Expected)) > 1e-9 {
		return errors.New("deviation must equal observed - expected")
	}
	return nil
}

// Significance holds goodness-of-fit statistics derived from a HypothesisResult.
type Significance struct {
	ChiSquare          float64 `json:"chi_square_stat" yaml:"chi_square_stat"`
	DegreesOfFreedom   int     `json:"degrees_of_freedom" yaml:"degrees_of_freedom"`
	PValue             float64 `json:"p_value" yaml:"p_value"`
	ZScore             float64 `json:"z_score" yaml:"z_score"`
	ConcentrationRatio float64 `json:"concentration_ratio" yaml:"concentration_ratio"`
	Alpha              float64 `json:"alpha" yaml:"alpha"`
	Uniform            bool    `json:"distribution_uniform" yaml:"distribution_uniform"`
}

// GroupResult is a HypothesisResult restricted to one group of records,
// such as a decade or a category.
type GroupResult struct {
	Key    string           `json:"key" yaml:"key"`
	Result HypothesisResult `json:"result" yaml:"result"`
}

// Run is one persisted execution of the analysis pipeline.
type Run struct {
	ID            string                   `json:"id" yaml:"id"`
	Sources       []string                 `json:"sources" yaml:"sources"`
	ReferenceDate Date                     `json:"reference_date" yaml:"reference_date"`
	InputCount    int                      `json:"input_count" yaml:"input_count"`
	Skipped       int                      `json:"skipped" yaml:"skipped"`
	Hypothesis    HypothesisResult         `json:"hypothesis" yaml:"hypothesis"`
	Significance  Significance             `json:"significance" yaml:"significance"`
	Breakdowns    map[string][]GroupResult `json:"breakdowns,omitempty" yaml:"breakdowns,omitempty"`
	CreatedAt     time.Time                `json:"created_at" yaml:"created_at"`
}

// Validate checks run field constraints.
func (r *Run) Validate() error {
	if len(r.Sources) == 0 {
		return errors.New("run must name at least one source")
	}
	if err := r.ReferenceDate.Validate(); err != nil {
		return err
	}
	if r.Skipped < 0 || r.Skipped > r.InputCount {
		return errors.New("skipped must be between 0 and input count")
	}
	if r.Hypothesis.Total != r.InputCount-r.Skipped {
		return errors.New("hypothesis total must equal input count minus skipped")
	}
	if err := r.Hypothesis.Validate(); err != nil {
		return err
	}
	if r.CreatedAt.After(time.Now()) {
		return errors.New("created at must not be in the future")
	}
	return nil
}
