package collector

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/numatrix/numatrix/internal/models"
)

// Dedupe drops records that repeat an earlier record: same calendar day and
// a label within maxDistance edits, compared case-insensitively. Records
// without a label are always kept. A negative maxDistance disables
// deduplication. Order of survivors is preserved.
func Dedupe(records []models.EventRecord, maxDistance int) []models.EventRecord {
	if maxDistance < 0 {
		return records
	}

	seen := make(map[string][]string)
	out := make([]models.EventRecord, 0, len(records))
	for _, r := range records {
		label := strings.ToLower(strings.TrimSpace(r.Label))
		if label == "" {
			out = append(out, r)
			continue
		}
		day := dayKey(r.DateText)

		dup := false
		for _, prev := range seen[day] {
			if levenshtein.ComputeDistance(prev, label) <= maxDistance {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[day] = append(seen[day], label)
		out = append(out, r)
	}
	return out
}

// dayKey normalizes date text to YYYY-MM-DD so that timestamps and plain
// dates for the same day compare equal. Unparsable text is used as is.
func dayKey(text string) string {
	text = strings.TrimSpace(text)
	if d, err := models.ParseDate(text); err == nil {
		return d.String()
	}
	return text
}
