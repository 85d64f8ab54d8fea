// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/challenge-lab/internal/domain"
)

// Repository defines the interface for persisting learners and challenge content.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// UpsertChallenge creates or replaces a challenge definition.
	UpsertChallenge(ctx context.Context, c *domain.Challenge) error

	// DeleteChallenge removes a challenge definition. Unknown ids are not an error.
	DeleteChallenge(ctx context.Context, id string) error

	// GetChallenge retrieves a challenge by id. Returns nil, nil when absent.
	GetChallenge(ctx context.Context, id string) (*domain.Challenge, error)

	// ListChallenges returns summaries of all challenges ordered by id.
	ListChallenges(ctx context.Context) ([]domain.Summary, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
