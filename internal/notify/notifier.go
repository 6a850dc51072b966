// Package notify delivers enforcement notices to actors. Delivery is
// at-least-once and fire-and-forget from the caller's perspective.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind distinguishes the enforcement events that produce a notice.
type Kind string

const (
	KindStrike     Kind = "strike"
	KindSuspension Kind = "suspension"
)

// Notification is one message addressed to an actor.
type Notification struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Kind      Kind      `json:"kind"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers notifications. Implementations must tolerate being
// called concurrently.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. It is the
// default when no delivery channel is configured.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	log.Info().
		Str("actor", n.ActorID).
		Str("kind", string(n.Kind)).
		Str("subject", n.Subject).
		Msg("notify: " + n.Body)
	return nil
}
