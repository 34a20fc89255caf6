package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"workspace-portal/internal/auth"

	_ "modernc.org/sqlite"
)

// SessionRepo hands out the per-browser keyspace backing an auth.Session.
type SessionRepo interface {
	// Bind returns the storage of one browser session. Operations on the
	// returned storage run under ctx.
	Bind(ctx context.Context, sessionID string) auth.Storage
	// PurgeIdle drops every session whose last write is older than before.
	PurgeIdle(ctx context.Context, before time.Time) (int64, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying resources.
	Close() error
}

// sqliteSessionRepo keeps session keys in a SQLite table.
type sqliteSessionRepo struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteSessionRepo opens (creating if needed) the session database at
// dbPath and applies pending migrations.
func NewSQLiteSessionRepo(dbPath string, logger *slog.Logger) (SessionRepo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; readers wait on the busy timeout
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteSessionRepo{db: db, logger: logger, now: time.Now}, nil
}

func (r *sqliteSessionRepo) Bind(ctx context.Context, sessionID string) auth.Storage {
	return &sqliteStorage{repo: r, ctx: ctx, sessionID: sessionID}
}

func (r *sqliteSessionRepo) PurgeIdle(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM session_items
		WHERE session_id IN (
			SELECT session_id FROM session_items
			GROUP BY session_id
			HAVING MAX(updated_at) < ?
		)
	`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge idle sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func (r *sqliteSessionRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *sqliteSessionRepo) Close() error {
	return r.db.Close()
}

// sqliteStorage is the auth.Storage view of one session. Database errors
// are logged and reported as a missing value, which the token store treats
// as an unauthenticated session.
type sqliteStorage struct {
	repo      *sqliteSessionRepo
	ctx       context.Context
	sessionID string
}

func (s *sqliteStorage) GetItem(key string) (string, bool) {
	var value string
	err := s.repo.db.QueryRowContext(s.ctx,
		"SELECT value FROM session_items WHERE session_id = ? AND key = ?",
		s.sessionID, key,
	).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.repo.logger.Error("failed to read session item", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

func (s *sqliteStorage) SetItem(key, value string) {
	_, err := s.repo.db.ExecContext(s.ctx, `
		INSERT INTO session_items (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, s.sessionID, key, value, s.repo.now().Unix())
	if err != nil {
		s.repo.logger.Error("failed to write session item", "key", key, "error", err)
	}
}

func (s *sqliteStorage) RemoveItem(key string) {
	_, err := s.repo.db.ExecContext(s.ctx,
		"DELETE FROM session_items WHERE session_id = ? AND key = ?",
		s.sessionID, key,
	)
	if err != nil {
		s.repo.logger.Error("failed to delete session item", "key", key, "error", err)
	}
}
