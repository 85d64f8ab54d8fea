package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/ashureev/challenge-lab/internal/domain"
)

// Store persists challenge content.
type Store interface {
	UpsertChallenge(ctx context.Context, c *domain.Challenge) error
	DeleteChallenge(ctx context.Context, id string) error
	GetChallenge(ctx context.Context, id string) (*domain.Challenge, error)
	ListChallenges(ctx context.Context) ([]domain.Summary, error)
}

// Catalog answers challenge lookups from the store.
type Catalog struct {
	store Store
}

// New creates a catalog backed by store.
func New(store Store) *Catalog {
	return &Catalog{store: store}
}

// GetChallengeByID returns the challenge, or nil when no challenge has that id.
func (c *Catalog) GetChallengeByID(ctx context.Context, id string) (*domain.Challenge, error) {
	ch, err := c.store.GetChallenge(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get challenge %s: %w", id, err)
	}
	return ch, nil
}

// List returns summaries of every challenge.
func (c *Catalog) List(ctx context.Context) ([]domain.Summary, error) {
	list, err := c.store.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return list, nil
}

// Seed loads the content pack in fsys and upserts every valid challenge.
// Invalid files are logged and skipped. Stored challenges that the pack no
// longer provides are deleted, unless the pack yields no valid challenge at
// all. It returns the number stored.
func (c *Catalog) Seed(ctx context.Context, fsys fs.FS) (int, error) {
	result, err := LoadPack(fsys)
	if err != nil {
		return 0, err
	}
	for _, w := range result.Warnings {
		slog.Warn("Challenge content warning", "warning", w)
	}
	for _, e := range result.Errors {
		slog.Error("Challenge content rejected", "error", e)
	}

	seeded := make(map[string]bool, len(result.Challenges))
	for _, ch := range result.Challenges {
		if err := c.store.UpsertChallenge(ctx, ch); err != nil {
			return 0, fmt.Errorf("store challenge %s: %w", ch.ID, err)
		}
		seeded[ch.ID] = true
	}

	if len(seeded) == 0 {
		slog.Warn("Content pack has no valid challenges, keeping stored catalog")
		return 0, nil
	}
	if err := c.prune(ctx, seeded); err != nil {
		return 0, err
	}
	return len(result.Challenges), nil
}

func (c *Catalog) prune(ctx context.Context, keep map[string]bool) error {
	stored, err := c.store.ListChallenges(ctx)
	if err != nil {
		return fmt.Errorf("list stored challenges: %w", err)
	}
	for _, sum := range stored {
		if keep[sum.ID] {
			continue
		}
		if err := c.store.DeleteChallenge(ctx, sum.ID); err != nil {
			return fmt.Errorf("delete challenge %s: %w", sum.ID, err)
		}
		slog.Info("Challenge removed from catalog", "challenge_id", sum.ID)
	}
	return nil
}
