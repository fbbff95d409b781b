package collector

import (
	"context"
	"time"

	"github.com/numatrix/numatrix/internal/logger"
	"github.com/numatrix/numatrix/internal/models"
)

// RecordCache stores fetched records per source.
type RecordCache interface {
	SaveRecords(source string, records []models.EventRecord, limit int, fetchedAt time.Time) error
	LoadRecords(source string) (*models.CachedRecords, error)
}

// CachedSource serves records from cache while they are younger than ttl and
// were fetched with a limit at least as large as the one requested. Otherwise
// it refreshes the cache from the wrapped source. When a refresh
// fails, stale cache is returned if any exists.
type CachedSource struct {
	src   Source
	cache RecordCache
	ttl   time.Duration
	now   func() time.Time
}

// NewCachedSource wraps src with cache.
func NewCachedSource(src Source, cache RecordCache, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, cache: cache, ttl: ttl, now: time.Now}
}

func (c *CachedSource) Name() string { return c.src.Name() }

func (c *CachedSource) Fetch(ctx context.Context, limit int) ([]models.EventRecord, error) {
	cached, err := c.cache.LoadRecords(c.Name())
	if err != nil {
		logger.Warn("Failed to load cache for %s: %v", c.Name(), err)
		cached = nil
	}
	if cached != nil && c.now().Sub(cached.FetchedAt) < c.ttl && cached.Covers(limit) {
		logger.Debug("Using cached records for %s (%d records)", c.Name(), len(cached.Records))
		return truncate(cached.Records, limit), nil
	}

	records, err := c.src.Fetch(ctx, limit)
	if err != nil {
		if cached != nil && len(cached.Records) > 0 {
			logger.Warn("Fetch from %s failed, using stale cache from %s: %v",
				c.Name(), cached.FetchedAt.Format(time.RFC3339), err)
			return truncate(cached.Records, limit), nil
		}
		return nil, err
	}

	if err := c.cache.SaveRecords(c.Name(), records, limit, c.now()); err != nil {
		logger.Warn("Failed to cache records for %s: %v", c.Name(), err)
	}
	return records, nil
}

func truncate(records []models.EventRecord, limit int) []models.EventRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
