// Package report renders analysis runs for people and for other tools.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/numatrix/numatrix/internal/models"
)

// Format names an output encoding for a run.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q: must be one of text, json, yaml", s)
	}
}

// Write renders run in the given format.
func Write(w io.Writer, f Format, run *models.Run) error {
	switch f {
	case FormatJSON:
		return JSON(w, run)
	case FormatYAML:
		return YAML(w, run)
	default:
		return Text(w, run)
	}
}

// JSON writes run as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// YAML writes v as YAML.
func YAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

var csvHeader = []string{"date", "year", "code", "label", "category", "source"}

// CSV writes one row per analysis record, in input order.
func CSV(w io.Writer, analysis []models.AnalysisRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, a := range analysis {
		row := []string{
			a.Date.String(),
			strconv.Itoa(a.Year),
			strconv.Itoa(a.Code),
			a.Label,
			a.Category,
			a.Source,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
