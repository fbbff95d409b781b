// Package storage provides SQLite-backed persistence for analysis runs and
// cached source records.
package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/numatrix/numatrix/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run id has no stored row.
var ErrRunNotFound = errors.New("run not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db      *sql.DB
	maxRuns int
}

// New opens or creates the SQLite database at dbPath and applies migrations.
// An empty dbPath defaults to $TMPDIR/numatrix/data.db.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "numatrix", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxRuns: maxRuns}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// migrate applies embedded migrations. The migrate instance is not closed:
// closing it would close s.db too.
func (s *Storage) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SaveRun persists a run, assigning a new id when run.ID is empty, and
// rotates history down to maxRuns.
func (s *Storage) SaveRun(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs
			(id, sources, reference_date, input_count, skipped, target_code,
			 total, observed, supported, p_value, payload, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, strings.Join(run.Sources, ","), run.ReferenceDate.String(),
		run.InputCount, run.Skipped, run.Hypothesis.TargetCode,
		run.Hypothesis.Total, run.Hypothesis.Observed, boolToInt(run.Hypothesis.Supported),
		run.Significance.PValue, string(payload), run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC LIMIT ?
		)`, s.maxRuns); err != nil {
		return fmt.Errorf("failed to enforce run cap: %w", err)
	}

	return tx.Commit()
}

// GetRun loads one run by id.
func (s *Storage) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(`SELECT payload FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Storage) ListRuns(limit int) ([]*models.Run, error) {
	rows, err := s.db.Query(`SELECT payload FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.Run{}
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RotateRuns keeps at most maxRuns newest runs by created_at.
func (s *Storage) RotateRuns() error {
	_, err := s.db.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC LIMIT ?
		)`, s.maxRuns)
	if err != nil {
		return fmt.Errorf("failed to rotate runs: %w", err)
	}
	return nil
}

// SaveRecords replaces the cached records for source. limit is the limit the
// records were fetched with; 0 means unlimited.
func (s *Storage) SaveRecords(source string, records []models.EventRecord, limit int, fetchedAt time.Time) error {
	if source == "" {
		return errors.New("source is required")
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO record_cache (source, records, fetch_limit, fetched_at)
		VALUES (?,?,?,?)`, source, string(data), limit, fetchedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}
	return nil
}

// LoadRecords returns the cached records for source, or nil when nothing
// is cached.
func (s *Storage) LoadRecords(source string) (*models.CachedRecords, error) {
	var data string
	var limit int
	var fetchedAtNano int64
	err := s.db.QueryRow(`
		SELECT records, fetch_limit, fetched_at FROM record_cache WHERE source = ?`, source,
	).Scan(&data, &limit, &fetchedAtNano)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	cached := &models.CachedRecords{Source: source, Limit: limit, FetchedAt: time.Unix(0, fetchedAtNano)}
	if err := json.Unmarshal([]byte(data), &cached.Records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal records: %w", err)
	}
	return cached, nil
}

func scanRun(scan func(...any) error) (*models.Run, error) {
	var payload string
	if err := scan(&payload); err != nil {
		return nil, err
	}
	var run models.Run
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
