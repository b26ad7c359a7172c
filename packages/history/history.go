package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("history record not found")

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	method        TEXT NOT NULL,
	url           TEXT NOT NULL,
	status_code   INTEGER NOT NULL DEFAULT 0,
	error_kind    TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	attempts      INTEGER NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	body_location TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS requests_created_at ON requests (created_at);
CREATE TABLE IF NOT EXISTS timeline_entries (
	request_id       TEXT NOT NULL REFERENCES requests (id) ON DELETE CASCADE,
	seq              INTEGER NOT NULL,
	timestamp        INTEGER NOT NULL,
	method           TEXT NOT NULL,
	url              TEXT NOT NULL,
	request_headers  TEXT NOT NULL,
	response_headers TEXT NOT NULL,
	status_code      INTEGER NOT NULL,
	info             TEXT NOT NULL,
	error            TEXT NOT NULL,
	duration_ms      INTEGER NOT NULL,
	PRIMARY KEY (request_id, seq)
);`

var requestColumns = []string{
	"id", "name", "method", "url", "status_code", "error_kind", "error",
	"attempts", "duration_ms", "body_location", "created_at",
}

// Record summarises one logical request.
type Record struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	StatusCode   int       `json:"statusCode,omitempty"`
	ErrorKind    string    `json:"errorKind,omitempty"`
	Error        string    `json:"error,omitempty"`
	Attempts     int       `json:"attempts"`
	DurationMs   int64     `json:"durationMs"`
	BodyLocation string    `json:"bodyLocation,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewRecord builds the record for a finished Execute call.
func NewRecord(req *http.Request, result *http.Result, err error) Record {
	rec := Record{
		Method:    strings.ToUpper(req.Method),
		URL:       req.URL,
		Name:      req.Name,
		ErrorKind: http.ErrorKind(err),
		CreatedAt: time.Now(),
	}
	if rec.Method == "" {
		rec.Method = "GET"
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if result == nil {
		return rec
	}
	rec.ID = result.ID
	if result.Timeline != nil {
		entries := result.Timeline.Entries()
		rec.Attempts = len(entries)
		if len(entries) > 0 {
			rec.CreatedAt = entries[0].Timestamp
		}
	}
	if resp := result.Response; resp != nil {
		rec.StatusCode = resp.StatusCode
		rec.DurationMs = resp.DurationMs()
		rec.BodyLocation = resp.BodyLocation
	}
	return rec
}

// Store is a sqlite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database. Accepted forms are
// sqlite://path, sqlite:path and a bare file path.
func Open(connectionString string) (*Store, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; concurrent runner goroutines queue on the pool.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores rec and its timeline in one transaction. A record without an
// id gets a new one, which is returned.
func (s *Store) Save(ctx context.Context, rec Record, timeline []http.TimelineEntry) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sq.Insert("requests").
		Columns(requestColumns...).
		Values(rec.ID, rec.Name, rec.Method, rec.URL, rec.StatusCode, rec.ErrorKind, rec.Error,
			rec.Attempts, rec.DurationMs, rec.BodyLocation, rec.CreatedAt.UnixNano()).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert request: %w", err)
	}

	if len(timeline) > 0 {
		insert := sq.Insert("timeline_entries").Columns(
			"request_id", "seq", "timestamp", "method", "url", "request_headers",
			"response_headers", "status_code", "info", "error", "duration_ms",
		)
		for i, e := range timeline {
			reqHeaders, err := json.Marshal(e.RequestHeaders)
			if err != nil {
				return "", err
			}
			respHeaders, err := json.Marshal(e.ResponseHeaders)
			if err != nil {
				return "", err
			}
			insert = insert.Values(rec.ID, i, e.Timestamp.UnixNano(), e.RequestMethod, e.RequestURL,
				string(reqHeaders), string(respHeaders), e.StatusCode, e.Info, e.Error, e.Duration.Milliseconds())
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return "", fmt.Errorf("insert timeline: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return rec.ID, nil
}

// ListOptions filters List. Zero values mean no filter.
type ListOptions struct {
	Limit     uint64
	Method    string
	ErrorOnly bool
}

// List returns records, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	q := sq.Select(requestColumns...).From("requests").OrderBy("created_at DESC", "rowid DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Method != "" {
		q = q.Where(sq.Eq{"method": strings.ToUpper(opts.Method)})
	}
	if opts.ErrorOnly {
		q = q.Where(sq.NotEq{"error_kind": ""})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// Get returns one record with its timeline in attempt order.
func (s *Store) Get(ctx context.Context, id string) (*Record, []http.TimelineEntry, error) {
	query, args, err := sq.Select(requestColumns...).From("requests").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, nil, err
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	query, args, err = sq.Select(
		"timestamp", "method", "url", "request_headers", "response_headers",
		"status_code", "info", "error", "duration_ms",
	).From("timeline_entries").Where(sq.Eq{"request_id": id}).OrderBy("seq").ToSql()
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []http.TimelineEntry
	for rows.Next() {
		var (
			e                       http.TimelineEntry
			ts, durationMs          int64
			reqHeaders, respHeaders string
		)
		if err := rows.Scan(&ts, &e.RequestMethod, &e.RequestURL, &reqHeaders, &respHeaders,
			&e.StatusCode, &e.Info, &e.Error, &durationMs); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(reqHeaders), &e.RequestHeaders); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal([]byte(respHeaders), &e.ResponseHeaders); err != nil {
			return nil, nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("row iteration error: %w", err)
	}
	return &rec, entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec       Record
		createdAt int64
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Method, &rec.URL, &rec.StatusCode, &rec.ErrorKind,
		&rec.Error, &rec.Attempts, &rec.DurationMs, &rec.BodyLocation, &createdAt)
	if err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.Unix(0, createdAt)
	return rec, nil
}

// parseConnectionString strips the optional sqlite scheme.
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)

	// Handle sqlite:// and sqlite: prefixes
	if strings.HasPrefix(connStr, "sqlite://") {
		connStr = strings.TrimPrefix(connStr, "sqlite://")
	} else if strings.HasPrefix(connStr, "sqlite:") {
		connStr = strings.TrimPrefix(connStr, "sqlite:")
	} else if strings.Contains(connStr, "://") {
		return "", fmt.Errorf("unsupported database scheme in %q: only sqlite is supported", connStr)
	}

	if connStr == "" {
		return "", errors.New("empty history database path")
	}
	return connStr, nil
}
