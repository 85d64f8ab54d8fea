package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/shared"
	"github.com/felixgeelhaar/fortify/retry"
	_ "modernc.org/sqlite"
)

// RetryConfig controls retries of writes that hit SQLITE_BUSY.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	retrier retry.Retry[struct{}]
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, rc RetryConfig) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if rc.MaxRetries <= 0 {
		rc.MaxRetries = 3
	}
	if rc.BaseDelay <= 0 {
		rc.BaseDelay = 50 * time.Millisecond
	}

	store := &SQLiteStore{
		db: db,
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   rc.MaxRetries,
			InitialDelay:  rc.BaseDelay,
			MaxDelay:      2 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   shared.IsSQLiteConflictError,
		}),
	}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);

	CREATE TABLE IF NOT EXISTS challenges (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		difficulty TEXT NOT NULL DEFAULT '',
		preview_support INTEGER NOT NULL DEFAULT 0,
		body_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// exec runs a write, retrying on SQLite lock conflicts.
func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	_, err := s.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if shared.IsSQLiteConflictError(err) {
				slog.Debug("SQLite busy, retrying write", "error", err)
			}
			return struct{}{}, err
		}
		result = res
		return struct{}{}, nil
	})
	return result, err
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.exec(ctx, query,
		user.UserID, user.Username,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.exec(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// UpsertChallenge creates or replaces a challenge definition.
func (s *SQLiteStore) UpsertChallenge(ctx context.Context, c *domain.Challenge) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode challenge %s: %w", c.ID, err)
	}

	query := `
	INSERT INTO challenges (id, title, difficulty, preview_support, body_json, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		difficulty = excluded.difficulty,
		preview_support = excluded.preview_support,
		body_json = excluded.body_json,
		updated_at = excluded.updated_at`

	if _, err := s.exec(ctx, query, c.ID, c.Title, c.Difficulty, c.PreviewSupport, string(body), time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert challenge: %w", err)
	}
	return nil
}

// DeleteChallenge removes a challenge definition.
func (s *SQLiteStore) DeleteChallenge(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM challenges WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete challenge %s: %w", id, err)
	}
	return nil
}

// GetChallenge retrieves a challenge by id.
func (s *SQLiteStore) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body_json FROM challenges WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan challenge row: %w", err)
	}

	var c domain.Challenge
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, fmt.Errorf("decode challenge %s: %w", id, err)
	}
	return &c, nil
}

// ListChallenges returns summaries of all challenges ordered by id.
func (s *SQLiteStore) ListChallenges(ctx context.Context) ([]domain.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, difficulty, preview_support FROM challenges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query challenges: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close challenge rows", "error", closeErr)
		}
	}()

	list := []domain.Summary{}
	for rows.Next() {
		var sum domain.Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Difficulty, &sum.PreviewSupport); err != nil {
			return nil, fmt.Errorf("scan challenge summary: %w", err)
		}
		list = append(list, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate challenges: %w", err)
	}
	return list, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
