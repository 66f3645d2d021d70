package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Store represents the SQLite storage implementation
type Store struct {
	db *sql.DB
}

// Session is one enrichment run of the console.
type Session struct {
	ID             string    `json:"id"`
	JobID          string    `json:"job_id,omitempty"`
	Mode           string    `json:"mode"`
	Title          string    `json:"title,omitempty"`
	Source         string    `json:"source,omitempty"`
	IndicatorCount int       `json:"indicator_count"`
	Total          int       `json:"total"`
	Done           int       `json:"done"`
	Complete       bool      `json:"complete"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StoredWarning is a banner warning raised during a session.
type StoredWarning struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Provider  string    `json:"provider"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStore creates a new SQLite store instance
func NewStore(dbPath string) (*Store, error) {
	// Ensure target directory exists (e.g., ./data)
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate performs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			job_id TEXT,
			mode TEXT NOT NULL,
			title TEXT,
			source TEXT,
			indicator_count INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0,
			done INTEGER NOT NULL DEFAULT 0,
			complete INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS indicators (
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			value TEXT NOT NULL,
			type TEXT NOT NULL,
			raw_match TEXT,
			PRIMARY KEY (session_id, value)
		)`,

		// One row per admitted (indicator, provider) pair.
		`CREATE TABLE IF NOT EXISTS results (
			session_id TEXT NOT NULL,
			ioc_value TEXT NOT NULL,
			provider TEXT NOT NULL,
			kind TEXT NOT NULL,
			verdict TEXT,
			raw_json TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (session_id, ioc_value, provider)
		)`,

		`CREATE TABLE IF NOT EXISTS warnings (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			provider TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_indicators_session ON indicators(session_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_results_verdict ON results(verdict)`,
		`CREATE INDEX IF NOT EXISTS idx_warnings_session ON warnings(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return s.setupAuditTables()
}

// SaveSession records a new session and its indicators in extraction order.
func (s *Store) SaveSession(ctx context.Context, sess Session, seeds []enrich.Seed) (string, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sess.IndicatorCount = len(seeds)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (
		id, job_id, mode, title, source, indicator_count, total, done, complete, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.JobID, sess.Mode, sess.Title, sess.Source, sess.IndicatorCount,
		sess.Total, sess.Done, boolToInt(sess.Complete),
		sess.CreatedAt.Unix(), sess.UpdatedAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	for i, seed := range seeds {
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO indicators (
			session_id, position, value, type, raw_match
		) VALUES (?, ?, ?, ?, ?)`, sess.ID, i, seed.Value, string(seed.Type), seed.RawMatch)
		if err != nil {
			return "", fmt.Errorf("failed to save indicator %q: %w", seed.Value, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit session: %w", err)
	}
	return sess.ID, nil
}

// UpdateProgress stores the latest done/total counters of a session.
func (s *Store) UpdateProgress(ctx context.Context, sessionID string, done, total int, complete bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions
		SET done = ?, total = ?, complete = MAX(complete, ?), updated_at = ?
		WHERE id = ?`, done, total, boolToInt(complete), time.Now().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetSession returns a session and its indicators.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, []enrich.Seed, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, job_id, mode, title, source, indicator_count,
		total, done, complete, created_at, updated_at FROM sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT value, type, raw_match FROM indicators
		WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query indicators: %w", err)
	}
	defer rows.Close()

	var seeds []enrich.Seed
	for rows.Next() {
		var seed enrich.Seed
		var typ string
		var raw sql.NullString
		if err := rows.Scan(&seed.Value, &typ, &raw); err != nil {
			return nil, nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		seed.Type = enrich.IOCType(typ)
		seed.RawMatch = raw.String
		seeds = append(seeds, seed)
	}
	return sess, seeds, rows.Err()
}

// ListSessions returns sessions, newest first. limit <= 0 means all.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	query := `SELECT id, job_id, mode, title, source, indicator_count,
		total, done, complete, created_at, updated_at FROM sessions ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var sess Session
	var jobID, title, source sql.NullString
	var complete int
	var createdAt, updatedAt int64
	err := r.Scan(&sess.ID, &jobID, &sess.Mode, &title, &source, &sess.IndicatorCount,
		&sess.Total, &sess.Done, &complete, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	sess.JobID = jobID.String
	sess.Title = title.String
	sess.Source = source.String
	sess.Complete = complete != 0
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)
	return &sess, nil
}

// SaveResult stores one admitted item under its verdict class, so stored
// counts agree with the dashboard. Saving the same (session, indicator,
// provider) again is a no-op; it reports whether a row was written.
func (s *Store) SaveResult(ctx context.Context, sessionID string, item enrich.EnrichmentItem) (bool, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("failed to marshal result: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO results (
		session_id, ioc_value, provider, kind, verdict, raw_json, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, item.IOCValue, item.Provider, string(item.Kind), string(item.EffectiveVerdict()),
		string(raw), time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to save result: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetSessionResults returns a session's stored items in admission order.
func (s *Store) GetSessionResults(ctx context.Context, sessionID string) ([]enrich.EnrichmentItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM results
		WHERE session_id = ? ORDER BY rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var items []enrich.EnrichmentItem
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var item enrich.EnrichmentItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("failed to decode stored result: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountByVerdict returns how many stored results fall in each verdict class.
func (s *Store) CountByVerdict(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		CASE WHEN kind = 'error' THEN 'error' ELSE COALESCE(NULLIF(verdict, ''), 'no_data') END AS v,
		COUNT(*) FROM results WHERE session_id = ? GROUP BY v`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var v string
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[v] = n
	}
	return counts, rows.Err()
}

// SaveWarning records a raised banner warning.
func (s *Store) SaveWarning(ctx context.Context, sessionID string, w enrich.Warning) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO warnings (
		id, session_id, kind, provider, message, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, string(w.Kind), w.Provider, w.Message, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save warning: %w", err)
	}
	return nil
}

// GetWarnings returns a session's warnings, oldest first.
func (s *Store) GetWarnings(ctx context.Context, sessionID string) ([]StoredWarning, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, kind, provider, message, created_at
		FROM warnings WHERE session_id = ? ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()

	var out []StoredWarning
	for rows.Next() {
		var w StoredWarning
		var createdAt int64
		if err := rows.Scan(&w.ID, &w.SessionID, &w.Kind, &w.Provider, &w.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		w.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and everything recorded for it.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	for _, table := range []string{"indicators", "results", "warnings", "audit_entries"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
