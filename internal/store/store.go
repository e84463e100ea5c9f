// Package store persists validation history in SQLite: one row per
// session, one row per attempt. History is advisory; the validation
// loop treats every store failure as a debug-log event, so this package
// never blocks a run.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bebsworthy/covergate/internal/session"
)

// ErrSessionNotFound is returned when no session matches an id or id
// prefix. ErrAmbiguousSession means a prefix matched more than one.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAmbiguousSession = errors.New("session id prefix is ambiguous")
)

// outputLimit caps stored command output. Full output lives in the
// attempt record returned to the caller; the database keeps an excerpt.
const outputLimit = 8192

// timeFormat is RFC3339 with fixed-width nanoseconds so the TEXT
// columns sort chronologically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed history store. It implements
// session.AttemptStore.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens (or creates) the history database at path, creating
// parent directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// initialize creates the schema.
func (s *Store) initialize() error {
	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		source_file TEXT NOT NULL,
		test_file TEXT NOT NULL,
		language TEXT,
		framework TEXT,
		command TEXT,
		report_path TEXT,
		desired_coverage REAL DEFAULT 0,
		baseline_coverage REAL DEFAULT 0,
		final_coverage REAL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	attemptsTable := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		test_name TEXT,
		behavior TEXT,
		tags TEXT,
		body TEXT,
		imports TEXT,
		outcome TEXT NOT NULL,
		exit_code INTEGER DEFAULT 0,
		stdout TEXT,
		stderr TEXT,
		summary TEXT,
		coverage_before REAL DEFAULT 0,
		coverage_after REAL DEFAULT 0,
		elapsed_ms INTEGER DEFAULT 0,
		started_at TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, ordinal)
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id);
	`

	for _, table := range []string{sessionsTable, attemptsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create history schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// BeginSession inserts the session row when a run starts.
func (s *Store) BeginSession(summary session.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO sessions
			(id, source_file, test_file, language, framework, command, report_path,
			 desired_coverage, baseline_coverage, final_coverage, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.SessionID, summary.SourceFile, summary.TestFile,
		summary.Language, summary.Framework, summary.Command, summary.ReportPath,
		summary.DesiredCoverage, summary.Coverage, summary.Coverage,
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to record session start: %w", err)
	}
	return nil
}

// FinishSession stamps the final coverage and end time.
func (s *Store) FinishSession(summary session.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE sessions SET final_coverage = ?, finished_at = ? WHERE id = ?`,
		summary.Coverage, time.Now().UTC().Format(timeFormat), summary.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to record session end: %w", err)
	}
	return nil
}

// RecordAttempt inserts one attempt row. Command output is truncated to
// an excerpt; the raw report is never stored.
func (s *Store) RecordAttempt(sessionID string, attempt *session.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO attempts
			(session_id, ordinal, test_name, behavior, tags, body, imports,
			 outcome, exit_code, stdout, stderr, summary,
			 coverage_before, coverage_after, elapsed_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, attempt.Ordinal, attempt.TestName, attempt.Behavior, attempt.Tags,
		attempt.Body, attempt.Imports,
		string(attempt.Outcome), attempt.ExitCode,
		excerpt(attempt.Stdout), excerpt(attempt.Stderr), attempt.Summary,
		attempt.CoverageBefore, attempt.CoverageAfter,
		attempt.Elapsed.Milliseconds(),
		attempt.StartedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// SessionRecord is one row of the sessions table plus attempt tallies.
type SessionRecord struct {
	ID               string
	SourceFile       string
	TestFile         string
	Language         string
	Framework        string
	Command          string
	ReportPath       string
	DesiredCoverage  float64
	BaselineCoverage float64
	FinalCoverage    float64
	Attempts         int
	Committed        int
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Finished reports whether the session recorded an end time.
func (r *SessionRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

const sessionColumns = `
	s.id, s.source_file, s.test_file, s.language, s.framework, s.command,
	s.report_path, s.desired_coverage, s.baseline_coverage, s.final_coverage,
	s.started_at, s.finished_at,
	(SELECT COUNT(*) FROM attempts a WHERE a.session_id = s.id),
	(SELECT COUNT(*) FROM attempts a WHERE a.session_id = s.id AND a.outcome = 'COMMITTED')`

// Sessions lists recorded sessions, newest first.
func (s *Store) Sessions(limit int) ([]SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT`+sessionColumns+` FROM sessions s ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck

	var records []SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// Session resolves a full session id or a unique id prefix.
func (s *Store) Session(idPrefix string) (*SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT`+sessionColumns+` FROM sessions s WHERE s.id LIKE ? || '%' LIMIT 2`, idPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck

	var matches []*SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, idPrefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousSession, idPrefix)
	}
}

// Attempts returns a session's attempts in ordinal order.
func (s *Store) Attempts(sessionID string) ([]session.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT ordinal, test_name, behavior, tags, body, imports,
			outcome, exit_code, stdout, stderr, summary,
			coverage_before, coverage_after, elapsed_ms, started_at
		 FROM attempts WHERE session_id = ? ORDER BY ordinal`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck

	var attempts []session.Attempt
	for rows.Next() {
		var (
			a         session.Attempt
			outcome   string
			elapsedMS int64
			startedAt sql.NullString
		)
		if err := rows.Scan(
			&a.Ordinal, &a.TestName, &a.Behavior, &a.Tags, &a.Body, &a.Imports,
			&outcome, &a.ExitCode, &a.Stdout, &a.Stderr, &a.Summary,
			&a.CoverageBefore, &a.CoverageAfter, &elapsedMS, &startedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Outcome = session.Outcome(outcome)
		a.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		a.StartedAt = parseTime(startedAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// scanner covers *sql.Rows and *sql.Row.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*SessionRecord, error) {
	var (
		record     SessionRecord
		startedAt  sql.NullString
		finishedAt sql.NullString
	)
	if err := sc.Scan(
		&record.ID, &record.SourceFile, &record.TestFile,
		&record.Language, &record.Framework, &record.Command,
		&record.ReportPath, &record.DesiredCoverage,
		&record.BaselineCoverage, &record.FinalCoverage,
		&startedAt, &finishedAt,
		&record.Attempts, &record.Committed,
	); err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	record.StartedAt = parseTime(startedAt)
	record.FinishedAt = parseTime(finishedAt)
	return &record, nil
}

// parseTime reads the RFC3339 text columns; unset or malformed values
// come back as the zero time.
func parseTime(value sql.NullString) time.Time {
	if !value.Valid || value.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// excerpt truncates command output for storage.
func excerpt(output string) string {
	if len(output) <= outputLimit {
		return output
	}
	cut := output[:outputLimit]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "\n... (truncated)"
}
