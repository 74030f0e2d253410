// Package archive persists per-page download outcomes in a local SQLite
// ledger. The ledger is a record of what happened, not task state: nothing
// resumes from it, but the skip-archived option and the history command
// read it.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LedgerFile is the database file name inside the log directory.
const LedgerFile = "archive.db"

// Outcome values recorded per page.
const (
	OutcomeDownloaded  = "downloaded"
	OutcomeSkippedFile = "skipped-exists"
	OutcomeSkippedFake = "skipped-fake-run"
	OutcomeFailed      = "failed"
)

// Record is one terminal page outcome.
type Record struct {
	ID           int64
	RunID        string
	IllustID     int64
	Page         int
	URL          string
	Path         string
	Outcome      string
	ErrorMessage string
	CreatedAt    time.Time
}

// Summary aggregates one run's outcomes.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Total reports the number of recorded page outcomes.
func (s Summary) Total() int {
	return s.Downloaded + s.Skipped + s.Failed
}

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database inside dir.
func Open(dir string) (*Store, error) {
	return OpenPath(filepath.Join(dir, LedgerFile))
}

// OpenPath initializes or connects to the ledger database at an explicit
// path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Append inserts one page outcome.
func (s *Store) Append(ctx context.Context, record Record) error {
	created := record.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO page_outcomes (
            run_id, illust_id, page, url, path, outcome, error_message, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RunID,
		record.IllustID,
		record.Page,
		record.URL,
		nullableString(record.Path),
		record.Outcome,
		nullableString(record.ErrorMessage),
		created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert page outcome: %w", err)
	}
	return nil
}

const recordColumns = "id, run_id, illust_id, page, url, path, outcome, error_message, created_at"

// Recent returns the newest records, optionally restricted to failures.
func (s *Store) Recent(ctx context.Context, limit int, failedOnly bool) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + recordColumns + ` FROM page_outcomes`
	args := []any{}
	if failedOnly {
		query += ` WHERE outcome = ?`
		args = append(args, OutcomeFailed)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Summarize counts one run's outcomes by class.
func (s *Store) Summarize(ctx context.Context, runID string) (Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(1) FROM page_outcomes WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize run: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return Summary{}, err
		}
		switch outcome {
		case OutcomeDownloaded:
			summary.Downloaded += count
		case OutcomeFailed:
			summary.Failed += count
		default:
			summary.Skipped += count
		}
	}
	return summary, rows.Err()
}

// Seen reports whether any page of the illustration was ever downloaded.
func (s *Store) Seen(ctx context.Context, illustID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM page_outcomes WHERE illust_id = ? AND outcome = ? LIMIT 1`,
		illustID, OutcomeDownloaded,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query seen: %w", err)
	}
	return count > 0, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		record     Record
		path       sql.NullString
		errMessage sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.RunID,
		&record.IllustID,
		&record.Page,
		&record.URL,
		&path,
		&record.Outcome,
		&errMessage,
		&createdRaw,
	); err != nil {
		return Record{}, err
	}
	record.Path = path.String
	record.ErrorMessage = errMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
