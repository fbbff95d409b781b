package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/numatrix/numatrix/internal/models"
)

// CSVFileSource reads records from a local CSV file with a header row.
// Recognized columns: date or year; label, event, eventlabel or title;
// category, typelabel or type.
type CSVFileSource struct {
	name string
	path string
}

// NewCSVFileSource creates a file source. An empty name defaults to the file
// name without extension.
func NewCSVFileSource(name, path string) *CSVFileSource {
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &CSVFileSource{name: name, path: path}
}

func (s *CSVFileSource) Name() string { return s.name }

func (s *CSVFileSource) Fetch(ctx context.Context, limit int) ([]models.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	table, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	dateCol := table.column("date", "event_date")
	yearCol := table.column("year")
	if dateCol < 0 && yearCol < 0 {
		return nil, errors.New("csv needs a date or year column")
	}
	labelCol := table.column("label", "event", "eventlabel", "title")
	categoryCol := table.column("category", "typelabel", "type")

	records := make([]models.EventRecord, 0, len(table.rows))
	for _, row := range table.rows {
		if limit > 0 && len(records) >= limit {
			break
		}
		date := field(row, dateCol)
		if date == "" {
			date = field(row, yearCol)
		}
		records = append(records, models.EventRecord{
			DateText: date,
			Label:    field(row, labelCol),
			Category: field(row, categoryCol),
			Source:   s.name,
		})
	}
	return records, nil
}
