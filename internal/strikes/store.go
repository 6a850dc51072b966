package strikes

import (
	"context"
	"time"
)

// Store defines the persistence interface for the strike ledger.
// Implementations must be safe for concurrent use.
type Store interface {
	// AppendStrike durably appends one strike. Strikes are never updated
	// or deleted afterwards.
	AppendStrike(ctx context.Context, strike Strike) error

	// CountStrikesForActorSince counts the actor's strikes created after
	// the given time.
	CountStrikesForActorSince(ctx context.Context, actorID string, since time.Time) (int, error)

	// ListStrikesForActor returns the actor's strikes, newest first,
	// capped at limit.
	ListStrikesForActor(ctx context.Context, actorID string, limit int) ([]Strike, error)

	// SetSuspension durably marks an actor as suspended.
	SetSuspension(ctx context.Context, suspension Suspension) error

	// GetSuspension returns the actor's suspension record, or nil if the
	// actor is in good standing.
	GetSuspension(ctx context.Context, actorID string) (*Suspension, error)
}
