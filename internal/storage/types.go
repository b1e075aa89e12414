package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for lookups and deletes of absent promotions.
var ErrNotFound = errors.New("storage: not found")

// Config configures storage.
//
// Driver values:
//   - "sqlite" (default if empty): SQLite database file
//   - "memory": in-process store (tests, ephemeral runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Promotion is one pending promotion request. Rows are immutable after
// creation; the only mutation is deletion on approve/reject.
type Promotion struct {
	ID            int64
	RequesterID   int64
	Content       string
	AudienceLimit int
}

// Store is the persistence API used by the controllers and the delivery engine.
type Store interface {
	// AddRecipient inserts a recipient into the audience. Idempotent.
	AddRecipient(ctx context.Context, userID int64) error
	// RemoveRecipient deletes a recipient from the audience. Idempotent:
	// removing an absent recipient is a no-op.
	RemoveRecipient(ctx context.Context, userID int64) error
	CountRecipients(ctx context.Context) (int64, error)
	// ListRecipients enumerates the audience in ascending user id order.
	// limit <= 0 returns the whole audience; otherwise a bounded prefix.
	ListRecipients(ctx context.Context, limit int) ([]int64, error)

	CreatePromotion(ctx context.Context, requesterID int64, content string, audienceLimit int) (int64, error)
	GetPromotion(ctx context.Context, id int64) (Promotion, error)
	// DeletePromotion removes a pending request. Returns ErrNotFound if no
	// row was deleted, so a second approve/reject on the same id fails.
	DeletePromotion(ctx context.Context, id int64) error

	Close() error
}
