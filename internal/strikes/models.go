// Package strikes records confirmed policy violations per actor and
// escalates repeated offenders to suspension.
package strikes

import (
	"time"

	"palisade/internal/moderation"
)

// Strike is one confirmed policy violation attributed to an actor.
// Strikes are immutable once created; they are only counted and aged out.
type Strike struct {
	ID            string                   `json:"id"`
	ActorID       string                   `json:"actor_id"`
	ViolationType moderation.ViolationType `json:"violation_type"`
	Content       string                   `json:"content"`
	RelatedPostID string                   `json:"related_post_id,omitempty"`
	Reason        string                   `json:"reason"`
	CreatedAt     time.Time                `json:"created_at"`
}

// Suspension marks an actor's one-way transition out of normal standing.
// Reversal is an administrative action outside this subsystem.
type Suspension struct {
	ActorID     string    `json:"actor_id"`
	Reason      string    `json:"reason"`
	StrikeCount int       `json:"strike_count"`
	SuspendedAt time.Time `json:"suspended_at"`
}

// Result reports the outcome of recording a strike.
type Result struct {
	StrikeCount int  `json:"strike_count"`
	Suspended   bool `json:"suspended"`
}

// SanctionState is the derived standing of an actor: strikes still inside
// the lookback window plus the suspension flag.
type SanctionState struct {
	ActorID           string `json:"actor_id"`
	ActiveStrikeCount int    `json:"active_strike_count"`
	Suspended         bool   `json:"suspended"`
	SuspensionReason  string `json:"suspension_reason,omitempty"`
}
