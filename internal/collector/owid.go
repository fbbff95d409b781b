package collector

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/numatrix/numatrix/internal/models"
)

// OWIDSource downloads an Our World in Data entity/year CSV, such as the
// UCDP ongoing conflicts dataset. Each entity-year row becomes one record
// dated January 1st of that year.
type OWIDSource struct {
	url      string
	category string
	http     *httpClient
}

// NewOWIDSource creates a source for the CSV at url.
func NewOWIDSource(url string, opts HTTPOptions) *OWIDSource {
	return &OWIDSource{url: url, category: "armed conflict", http: newHTTPClient(opts)}
}

func (s *OWIDSource) Name() string { return "owid" }

func (s *OWIDSource) Fetch(ctx context.Context, limit int) ([]models.EventRecord, error) {
	resp, err := s.http.doRequest(ctx, s.url, "text/csv")
	if err != nil {
		return nil, fmt.Errorf("failed to download owid dataset: %w", err)
	}
	defer resp.Body.Close()

	table, err := readCSV(resp.Body)
	if err != nil {
		return nil, err
	}
	entityCol := table.column("entity", "country")
	yearCol := table.column("year")
	if yearCol < 0 {
		return nil, errors.New("owid dataset has no year column")
	}

	var records []models.EventRecord
	for _, row := range table.rows {
		if limit > 0 && len(records) >= limit {
			break
		}
		year, err := strconv.Atoi(field(row, yearCol))
		if err != nil {
			continue
		}
		records = append(records, models.EventRecord{
			DateText: models.NewDate(year, 1, 1).String(),
			Label:    field(row, entityCol),
			Category: s.category,
			Source:   s.Name(),
		})
	}
	return records, nil
}
