package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/numatrix/numatrix/internal/models"
)

// WikidataSource queries the Wikidata SPARQL endpoint for dated events
// (instances of occurrence Q1190554 with a point in time) since 1900.
type WikidataSource struct {
	endpoint string
	http     *httpClient
}

// NewWikidataSource creates a source against the given SPARQL endpoint.
func NewWikidataSource(endpoint string, opts HTTPOptions) *WikidataSource {
	return &WikidataSource{endpoint: endpoint, http: newHTTPClient(opts)}
}

func (s *WikidataSource) Name() string { return "wikidata" }

const wikidataQuery = `SELECT ?event ?eventLabel ?date ?typeLabel WHERE {
  ?event wdt:P31/wdt:P279* wd:Q1190554 ;
         wdt:P585 ?date .
  OPTIONAL { ?event wdt:P31 ?type . }
  SERVICE wikibase:label {
    bd:serviceParam wikibase:language "en" .
    ?event rdfs:label ?eventLabel .
    ?type rdfs:label ?typeLabel .
  }
  FILTER(YEAR(?date) >= 1900)
}
ORDER BY DESC(?date)
LIMIT %d`

type sparqlValue struct {
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

// Fetch runs the query and converts bindings to records. Bindings without a
// date are dropped; unparsable dates are left for the analyzer to skip.
func (s *WikidataSource) Fetch(ctx context.Context, limit int) ([]models.EventRecord, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("query", fmt.Sprintf(wikidataQuery, limit))
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	resp, err := s.http.doRequest(ctx, u.String(), "application/sparql-results+json")
	if err != nil {
		return nil, fmt.Errorf("failed to query wikidata: %w", err)
	}
	defer resp.Body.Close()

	var body sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode sparql results: %w", err)
	}

	records := make([]models.EventRecord, 0, len(body.Results.Bindings))
	for _, b := range body.Results.Bindings {
		date := b["date"].Value
		if date == "" {
			continue
		}
		records = append(records, models.EventRecord{
			DateText: date,
			Label:    b["eventLabel"].Value,
			Category: b["typeLabel"].Value,
			Source:   s.Name(),
		})
	}
	return records, nil
}
