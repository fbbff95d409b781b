// Package collector fetches dated event records from external and local
// sources.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/numatrix/numatrix/internal/models"
)

// ErrUnknownSource is returned when no source is registered under an id.
var ErrUnknownSource = errors.New("unknown source")

// Source produces event records.
type Source interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]models.EventRecord, error)
}

// Registry resolves source ids to Sources. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry returns a registry holding the given sources.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source)}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a source under its Name.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Names lists registered source ids in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch fetches up to limit records from the source registered as id.
// Records with no Source set are tagged with id.
func (r *Registry) Fetch(ctx context.Context, id string, limit int) ([]models.EventRecord, error) {
	r.mu.RLock()
	src, ok := r.sources[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}

	records, err := src.Fetch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", id, err)
	}
	for i := range records {
		if records[i].Source == "" {
			records[i].Source = id
		}
	}
	return records, nil
}
