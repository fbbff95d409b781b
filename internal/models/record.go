package models

import (
	"errors"
	"time"
)

// EventRecord is a dated historical event as delivered by a record source.
// DateText is kept raw; parsing happens when records are mapped to codes so
// that unparsable dates can be dropped rather than failing the whole batch.
type EventRecord struct {
	DateText string `json:"date"`
	Label    string `json:"label,omitempty"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
}

// AnalysisRecord pairs a parsed event date with its derived personal year code.
type AnalysisRecord struct {
	Date     Date   `json:"date" yaml:"date"`
	Year     int    `json:"year" yaml:"year"`
	Code     int    `json:"code" yaml:"code"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Validate checks analysis record field constraints.
func (a *AnalysisRecord) Validate() error {
	if err := a.Date.Validate(); err != nil {
		return err
	}
	if a.Year != a.Date.Year {
		return errors.New("year must match date year")
	}
	if a.Code < 0 || a.Code > 9 {
		return errors.New("code must be between 0 and 9")
	}
	return nil
}

// CycleEntry is one year of a personal year projection.
type CycleEntry struct {
	Year           int    `json:"year"`
	Code           int    `json:"code"`
	Interpretation string `json:"interpretation"`
}

// CachedRecords is a source's record cache as persisted by storage.
type CachedRecords struct {
	Source    string
	Records   []EventRecord
	Limit     int // fetch limit the records were requested with, 0 for none
	FetchedAt time.Time
}

// Covers reports whether the cached records can answer a request for up to
// limit records (0 meaning all of them).
func (c *CachedRecords) Covers(limit int) bool {
	if c.Limit <= 0 || len(c.Records) < c.Limit {
		// unlimited fetch, or the source ran out before the limit
		return true
	}
	return limit > 0 && limit <= c.Limit
}
