package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loqalabs/loqa-rhvoice/internal/config"
	"github.com/loqalabs/loqa-rhvoice/internal/tts"
)

// Entry is one recorded synthesis attempt.
type Entry struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id,omitempty"`
	Backend    string        `json:"backend"`
	Language   string        `json:"language,omitempty"`
	Voice      string        `json:"voice"`
	Format     string        `json:"format"`
	TextLength int           `json:"text_length"`
	Outcome    string        `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	Bytes      int           `json:"bytes"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Store wraps a SQLite-backed journal of synthesis attempts.
type Store struct {
	db    *sql.DB
	cfg   config.JournalConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the journal according to config. Ephemeral retention keeps
// nothing and opens no database.
func Open(ctx context.Context, cfg config.JournalConfig, log *slog.Logger) (*Store, error) {
	log = log.With(slog.String("component", "journal"))
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("journal vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("journal prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS attempts (
    id TEXT PRIMARY KEY,
    session_id TEXT,
    backend TEXT NOT NULL,
    language TEXT,
    voice TEXT,
    format TEXT,
    text_length INTEGER,
    outcome TEXT NOT NULL,
    status_code INTEGER,
    bytes INTEGER,
    duration_ms INTEGER,
    error TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at);
CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init journal schema: %w", err)
	}
	return nil
}

func (s *Store) enabled() bool {
	return s.cfg.RetentionMode != "ephemeral" && s.db != nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record writes an entry into the journal.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if !s.enabled() {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts(id, session_id, backend, language, voice, format, text_length, outcome, status_code, bytes, duration_ms, error, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Backend, e.Language, e.Voice, e.Format, e.TextLength, e.Outcome,
		e.StatusCode, e.Bytes, e.Duration.Milliseconds(), e.Error, e.CreatedAt.UTC())
	return err
}

// Observe records a synthesis attempt. Failures are logged, never returned, so
// the journal cannot change the outcome of a synthesis call.
func (s *Store) Observe(ctx context.Context, a tts.Attempt) {
	if !s.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.Record(ctx, FromAttempt(a)); err != nil {
		s.log.Warn("failed to record synthesis attempt", slog.String("id", a.ID), slog.String("error", err.Error()))
	}
}

// FromAttempt flattens an attempt into a journal entry.
func FromAttempt(a tts.Attempt) Entry {
	e := Entry{
		ID:         a.ID,
		SessionID:  a.SessionID,
		Backend:    a.Backend,
		Language:   a.Language,
		Voice:      a.Params.Voice,
		Format:     a.Params.Format,
		TextLength: len([]rune(a.Params.Text)),
		Outcome:    string(a.Outcome),
		StatusCode: a.StatusCode,
		Bytes:      len(a.Audio),
		Duration:   a.Duration,
		CreatedAt:  a.StartedAt.UTC(),
	}
	if a.Err != nil {
		e.Error = a.Err.Error()
	}
	return e
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if !s.enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, backend, language, voice, format, text_length, outcome, status_code, bytes, duration_ms, error, created_at
		 FROM attempts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			durationMS int64
			created    time.Time
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Backend, &e.Language, &e.Voice, &e.Format, &e.TextLength,
			&e.Outcome, &e.StatusCode, &e.Bytes, &durationMS, &e.Error, &created); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.CreatedAt = created
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats counts journal entries per outcome.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)
	if !s.enabled() {
		return stats, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM attempts GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			outcome string
			count   int
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats[outcome] = count
	}
	return stats, rows.Err()
}

// Prune applies the configured retention (called on startup and can be scheduled).
func (s *Store) Prune(ctx context.Context) (err error) {
	if !s.enabled() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM attempts WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxEntries > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM attempts WHERE id IN (
			SELECT id FROM attempts ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxEntries)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
