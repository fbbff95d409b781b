package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/numatrix/numatrix/internal/models"
)

var testHTTP = HTTPOptions{
	Timeout:        5 * time.Second,
	MaxRetries:     3,
	RetryDelayBase: time.Millisecond,
	UserAgent:      "numatrix-test",
}

const sparqlBody = `{
  "head": {"vars": ["event", "eventLabel", "date", "typeLabel"]},
  "results": {"bindings": [
    {"event": {"type": "uri", "value": "http://www.wikidata.org/entity/Q81068910"},
     "eventLabel": {"type": "literal", "value": "COVID-19 pandemic"},
     "date": {"type": "literal", "value": "2020-03-11T00:00:00Z"},
     "typeLabel": {"type": "literal", "value": "pandemic"}},
    {"event": {"type": "uri", "value": "http://www.wikidata.org/entity/Q1"},
     "eventLabel": {"type": "literal", "value": "no date"}},
    {"event": {"type": "uri", "value": "http://www.wikidata.org/entity/Q361"},
     "eventLabel": {"type": "literal", "value": "World War I"},
     "date": {"type": "literal", "value": "1914-07-28T00:00:00Z"}}
  ]}
}`

func TestWikidataSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format = %q, want json", r.URL.Query().Get("format"))
		}
		if !strings.Contains(r.URL.Query().Get("query"), "LIMIT 25") {
			t.Errorf("query missing limit: %s", r.URL.Query().Get("query"))
		}
		if r.Header.Get("User-Agent") != "numatrix-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		_, _ = w.Write([]byte(sparqlBody))
	}))
	defer server.Close()

	src := NewWikidataSource(server.URL, testHTTP)
	records, err := src.Fetch(context.Background(), 25)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	want := models.EventRecord{
		DateText: "2020-03-11T00:00:00Z",
		Label:    "COVID-19 pandemic",
		Category: "pandemic",
		Source:   "wikidata",
	}
	if records[0] != want {
		t.Errorf("records[0] = %+v, want %+v", records[0], want)
	}
	if records[1].Category != "" {
		t.Errorf("missing typeLabel should be empty, got %q", records[1].Category)
	}
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sparqlBody))
	}))
	defer server.Close()

	records, err := NewWikidataSource(server.URL, testHTTP).Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
	if calls.Load() != 3 {
		t.Errorf("got %d calls, want 3", calls.Load())
	}
}

func TestDoRequest_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewWikidataSource(server.URL, testHTTP).Fetch(context.Background(), 10)
	if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
		t.Fatalf("err = %v, want max retries exceeded", err)
	}
	if calls.Load() != 3 {
		t.Errorf("got %d calls, want 3", calls.Load())
	}
}

func TestDoRequest_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := NewWikidataSource(server.URL, testHTTP).Fetch(context.Background(), 10); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("got %d calls, want 1", calls.Load())
	}
}

func TestOWIDSource_Fetch(t *testing.T) {
	body := "Entity,Year,Number of ongoing conflicts\n" +
		"World,1946,17\n" +
		"World,1947,not-a-year-row\n" +
		"Africa,,3\n" +
		"Asia,2003,12\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	src := NewOWIDSource(server.URL, testHTTP)
	records, err := src.Fetch(context.Background(), 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	// Rows without a year are skipped; value columns are not inspected.
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3: %+v", len(records), records)
	}
	if records[0].DateText != "1946-01-01" || records[0].Label != "World" || records[0].Source != "owid" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[2].DateText != "2003-01-01" {
		t.Errorf("records[2] = %+v", records[2])
	}

	limited, err := src.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d records with limit 1", len(limited))
	}
}

func TestOWIDSource_NoYearColumn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Entity,Value\nWorld,3\n"))
	}))
	defer server.Close()

	if _, err := NewOWIDSource(server.URL, testHTTP).Fetch(context.Background(), 0); err == nil {
		t.Error("expected error for dataset without year column")
	}
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCSVFileSource_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []models.EventRecord
		wantErr bool
	}{
		{
			name:    "date label category",
			content: "date,label,category\n2008-09-15,Lehman collapse,financial crisis\n",
			want:    []models.EventRecord{{DateText: "2008-09-15", Label: "Lehman collapse", Category: "financial crisis", Source: "events"}},
		},
		{
			name:    "wikidata export headers",
			content: "eventLabel,date,typeLabel\nMoon landing,1969-07-20T00:00:00Z,spaceflight\n",
			want:    []models.EventRecord{{DateText: "1969-07-20T00:00:00Z", Label: "Moon landing", Category: "spaceflight", Source: "events"}},
		},
		{
			name:    "year fallback",
			content: "Year,Event\n1989,Fall of the Berlin Wall\n",
			want:    []models.EventRecord{{DateText: "1989", Label: "Fall of the Berlin Wall", Source: "events"}},
		},
		{
			name:    "blank date kept for analyzer to skip",
			content: "date,label\n,undated\n",
			want:    []models.EventRecord{{DateText: "", Label: "undated", Source: "events"}},
		},
		{
			name:    "no date column",
			content: "label,category\nsomething,other\n",
			wantErr: true,
		},
		{
			name:    "empty file",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewCSVFileSource("", writeCSV(t, "events.csv", tt.content))
			got, err := src.Fetch(context.Background(), 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("record %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCSVFileSource_MissingFile(t *testing.T) {
	src := NewCSVFileSource("x", filepath.Join(t.TempDir(), "missing.csv"))
	if _, err := src.Fetch(context.Background(), 0); err == nil {
		t.Error("expected error for missing file")
	}
}

type fakeSource struct {
	name    string
	records []models.EventRecord
	err     error
	calls   int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, limit int) ([]models.EventRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return truncate(append([]models.EventRecord(nil), f.records...), limit), nil
}

func TestRegistry_Fetch(t *testing.T) {
	src := &fakeSource{name: "demo", records: []models.EventRecord{
		{DateText: "2001-09-11"},
		{DateText: "2004-12-26", Source: "upstream"},
	}}
	reg := NewRegistry(src)

	got, err := reg.Fetch(context.Background(), "demo", 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got[0].Source != "demo" || got[1].Source != "upstream" {
		t.Errorf("source tagging wrong: %+v", got)
	}

	if _, err := reg.Fetch(context.Background(), "nope", 10); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("err = %v, want ErrUnknownSource", err)
	}

	src.err = errors.New("boom")
	if _, err := reg.Fetch(context.Background(), "demo", 10); err == nil || !strings.Contains(err.Error(), "demo") {
		t.Errorf("err = %v, want wrapped error naming source", err)
	}

	reg.Register(&fakeSource{name: "another"})
	if names := reg.Names(); len(names) != 2 || names[0] != "another" || names[1] != "demo" {
		t.Errorf("Names() = %v", names)
	}
}

type memCache struct {
	entries map[string]*models.CachedRecords
	saves   int
}

func (m *memCache) SaveRecords(source string, records []models.EventRecord, limit int, fetchedAt time.Time) error {
	m.saves++
	m.entries[source] = &models.CachedRecords{Source: source, Records: records, Limit: limit, FetchedAt: fetchedAt}
	return nil
}

func (m *memCache) LoadRecords(source string) (*models.CachedRecords, error) {
	return m.entries[source], nil
}

func TestCachedSource(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{name: "wikidata", records: []models.EventRecord{{DateText: "2020-01-01"}, {DateText: "2021-01-01"}}}
	cache := &memCache{entries: map[string]*models.CachedRecords{}}
	cs := NewCachedSource(src, cache, time.Hour)
	cs.now = func() time.Time { return now }

	// Cold cache fetches and stores.
	got, err := cs.Fetch(context.Background(), 10)
	if err != nil || len(got) != 2 {
		t.Fatalf("cold fetch: %v, %d records", err, len(got))
	}
	if src.calls != 1 || cache.saves != 1 {
		t.Errorf("calls=%d saves=%d, want 1/1", src.calls, cache.saves)
	}

	// Fresh cache is served without fetching and honors limit.
	now = now.Add(30 * time.Minute)
	got, _ = cs.Fetch(context.Background(), 1)
	if src.calls != 1 {
		t.Errorf("fresh cache should not fetch, calls=%d", src.calls)
	}
	if len(got) != 1 {
		t.Errorf("got %d records with limit 1", len(got))
	}

	// Expired cache refetches.
	now = now.Add(time.Hour)
	if _, err := cs.Fetch(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("expired cache should fetch, calls=%d", src.calls)
	}

	// Failed refresh falls back to stale cache.
	now = now.Add(2 * time.Hour)
	src.err = errors.New("endpoint down")
	got, err = cs.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("expected stale cache fallback, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d stale records, want 2", len(got))
	}
}

func TestDedupe_NormalizesDates(t *testing.T) {
	records := []models.EventRecord{
		{DateText: "2001-09-11T00:00:00Z", Label: "September 11 attacks", Source: "wikidata"},
		{DateText: "2001-09-11", Label: "September 11 attacks", Source: "csv"},
		{DateText: " 2001-09-11 ", Label: "september 11 attack", Source: "owid"},
		{DateText: "2001-09-12", Label: "September 11 attacks", Source: "csv"},
	}
	got := Dedupe(records, 2)
	if len(got) != 2 {
		t.Fatalf("kept %d records, want 2: %+v", len(got), got)
	}
	if got[0].Source != "wikidata" || got[1].DateText != "2001-09-12" {
		t.Errorf("unexpected survivors: %+v", got)
	}
}

func TestDedupe_KeepsUnlabeled(t *testing.T) {
	records := []models.EventRecord{
		{DateText: "1990", Source: "wikidata"},
		{DateText: "1990", Source: "csv"},
		{DateText: "1990-01-01", Label: "  ", Source: "owid"},
		{DateText: "1990", Label: "Reunification talks", Source: "csv"},
	}
	if got := Dedupe(records, 2); len(got) != 4 {
		t.Errorf("kept %d records, want 4: %+v", len(got), got)
	}
}

func TestCachedSource_LargerLimitRefetches(t *testing.T) {
	records := make([]models.EventRecord, 5)
	for i := range records {
		records[i] = models.EventRecord{DateText: fmt.Sprintf("%d-01-01", 2000+i)}
	}
	src := &fakeSource{name: "wikidata", records: records}
	cache := &memCache{entries: map[string]*models.CachedRecords{}}
	cs := NewCachedSource(src, cache, time.Hour)

	tests := []struct {
		limit     int
		wantLen   int
		wantCalls int
	}{
		{2, 2, 1},
		{5, 5, 2}, // cache holds only 2
		{3, 3, 2},
		{0, 5, 3}, // unlimited is larger than any cached limit
		{10, 5, 3},
	}
	for _, tt := range tests {
		got, err := cs.Fetch(context.Background(), tt.limit)
		if err != nil {
			t.Fatalf("Fetch(%d): %v", tt.limit, err)
		}
		if len(got) != tt.wantLen || src.calls != tt.wantCalls {
			t.Errorf("Fetch(%d) = %d records, calls=%d, want %d records, calls=%d",
				tt.limit, len(got), src.calls, tt.wantLen, tt.wantCalls)
		}
	}
}

func TestCachedSource_ExhaustedSourceServesAnyLimit(t *testing.T) {
	src := &fakeSource{name: "owid", records: []models.EventRecord{{DateText: "1990"}, {DateText: "1991"}}}
	cs := NewCachedSource(src, &memCache{entries: map[string]*models.CachedRecords{}}, time.Hour)

	for _, limit := range []int{10, 50, 0} {
		got, err := cs.Fetch(context.Background(), limit)
		if err != nil || len(got) != 2 {
			t.Fatalf("Fetch(%d) = %d records, %v", limit, len(got), err)
		}
	}
	if src.calls != 1 {
		t.Errorf("calls = %d, want 1", src.calls)
	}
}

func TestCachedSource_NoCacheError(t *testing.T) {
	src := &fakeSource{name: "owid", err: errors.New("down")}
	cs := NewCachedSource(src, &memCache{entries: map[string]*models.CachedRecords{}}, time.Hour)
	if _, err := cs.Fetch(context.Background(), 10); err == nil {
		t.Error("expected error with empty cache and failing source")
	}
}

func TestDedupe(t *testing.T) {
	records := []models.EventRecord{
		{DateText: "1969-07-20", Label: "Apollo 11 Moon landing", Source: "wikidata"},
		{DateText: "1969-07-20", Label: "Apollo 11 moon landing", Source: "csv"},
		{DateText: "1969-07-20", Label: "Apollo 11 Moon landings", Source: "csv"},
		{DateText: "1969-07-20", Label: "Woodstock preparations", Source: "csv"},
		{DateText: "1970-07-20", Label: "Apollo 11 Moon landing", Source: "csv"},
	}

	tests := []struct {
		maxDistance int
		want        int
	}{
		{-1, 5},
		{0, 4},
		{2, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.maxDistance), func(t *testing.T) {
			got := Dedupe(records, tt.maxDistance)
			if len(got) != tt.want {
				t.Errorf("Dedupe(%d) kept %d records, want %d", tt.maxDistance, len(got), tt.want)
			}
			if got[0].Source != "wikidata" {
				t.Errorf("first occurrence must survive, got %+v", got[0])
			}
		})
	}
}
