package strikes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"palisade/internal/metrics"
	"palisade/internal/moderation"
	"palisade/internal/notify"
	"palisade/internal/tracing"
)

// Default escalation policy.
const (
	DefaultSuspensionThreshold = 3
	DefaultLookbackWindow      = 90 * 24 * time.Hour
)

// SessionInvalidator revokes an actor's active sessions. It is called on
// the suspension transition; the session layer itself is an external
// collaborator.
type SessionInvalidator func(ctx context.Context, actorID string) error

// Options configures a Service.
type Options struct {
	// SuspensionThreshold is the active strike count that triggers
	// suspension. If zero, DefaultSuspensionThreshold is used.
	SuspensionThreshold int

	// LookbackWindow is how far back strikes count as active.
	// If zero, DefaultLookbackWindow is used.
	LookbackWindow time.Duration

	// Notifier delivers strike and suspension notices. Delivery is
	// fire-and-forget: failures are logged and never roll back a strike.
	Notifier notify.Notifier

	// InvalidateSessions, if set, is called once on the suspension
	// transition.
	InvalidateSessions SessionInvalidator
}

// Service is the strike ledger plus the escalation state machine:
// clean -> strikes(1..n) -> suspended, with suspension a one-way
// transition taken exactly once.
type Service struct {
	store      Store
	threshold  int
	lookback   time.Duration
	notifier   notify.Notifier
	invalidate SessionInvalidator
	now        func() time.Time

	// actorLocks serializes count-then-escalate per actor so two
	// concurrent violations can't both observe a pre-threshold count and
	// skip the suspension transition. Different actors never contend.
	// Entries are refcounted and removed once the last holder releases,
	// so the map stays proportional to in-flight actors.
	mu         sync.Mutex
	actorLocks map[string]*actorLock
}

type actorLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates the strike ledger service.
func NewService(store Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("strike store is required")
	}
	if opts.SuspensionThreshold == 0 {
		opts.SuspensionThreshold = DefaultSuspensionThreshold
	}
	if opts.LookbackWindow == 0 {
		opts.LookbackWindow = DefaultLookbackWindow
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier()
	}

	return &Service{
		store:      store,
		threshold:  opts.SuspensionThreshold,
		lookback:   opts.LookbackWindow,
		notifier:   opts.Notifier,
		invalidate: opts.InvalidateSessions,
		now:        time.Now,
		actorLocks: make(map[string]*actorLock),
	}, nil
}

// StrikeInput carries the violation details to record.
type StrikeInput struct {
	ViolationType moderation.ViolationType
	Content       string
	RelatedPostID string
	Reason        string
}

// RecordStrike appends a strike for the actor, counts strikes inside the
// lookback window, and suspends the actor when the threshold is reached.
// A strike after suspension is still recorded but does not re-trigger the
// transition. Persistence failures are returned; notification failures are
// not.
func (s *Service) RecordStrike(ctx context.Context, actorID string, input StrikeInput) (Result, error) {
	ctx, span := tracing.StrikeSpan(ctx, actorID)
	defer span.End()

	lock := s.lockActor(actorID)
	defer s.unlockActor(actorID, lock)

	strike := Strike{
		ID:            uuid.NewString(),
		ActorID:       actorID,
		ViolationType: input.ViolationType,
		Content:       input.Content,
		RelatedPostID: input.RelatedPostID,
		Reason:        input.Reason,
		CreatedAt:     s.now(),
	}

	if err := s.store.AppendStrike(ctx, strike); err != nil {
		tracing.EndWithError(span, err)
		return Result{}, fmt.Errorf("failed to append strike for %s: %w", actorID, err)
	}
	metrics.StrikesTotal.WithLabelValues(string(input.ViolationType)).Inc()

	since := s.now().Add(-s.lookback)
	count, err := s.store.CountStrikesForActorSince(ctx, actorID, since)
	if err != nil {
		tracing.EndWithError(span, err)
		return Result{}, fmt.Errorf("failed to count strikes for %s: %w", actorID, err)
	}

	log.Info().
		Str("actor", actorID).
		Str("violation_type", string(input.ViolationType)).
		Int("active_strikes", count).
		Msg("strikes: violation recorded")

	s.deliver(ctx, notify.Notification{
		ID:      uuid.NewString(),
		ActorID: actorID,
		Kind:    notify.KindStrike,
		Subject: "Policy violation recorded",
		Body: fmt.Sprintf("Your content violated our %s policy: %s. Active strikes: %d of %d.",
			input.ViolationType, input.Reason, count, s.threshold),
		CreatedAt: s.now(),
	})

	result := Result{StrikeCount: count}
	if count < s.threshold {
		return result, nil
	}

	suspension, err := s.store.GetSuspension(ctx, actorID)
	if err != nil {
		tracing.EndWithError(span, err)
		return Result{}, fmt.Errorf("failed to read suspension state for %s: %w", actorID, err)
	}
	if suspension != nil {
		// Already suspended; the transition happens once.
		result.Suspended = true
		return result, nil
	}

	reason := fmt.Sprintf("Reached %d active strikes within the lookback window", count)
	if err := s.store.SetSuspension(ctx, Suspension{
		ActorID:     actorID,
		Reason:      reason,
		StrikeCount: count,
		SuspendedAt: s.now(),
	}); err != nil {
		tracing.EndWithError(span, err)
		return Result{}, fmt.Errorf("failed to suspend %s: %w", actorID, err)
	}

	metrics.SuspensionsTotal.Inc()
	log.Warn().
		Str("actor", actorID).
		Int("active_strikes", count).
		Msg("strikes: actor suspended")

	if s.invalidate != nil {
		if err := s.invalidate(ctx, actorID); err != nil {
			log.Error().Err(err).Str("actor", actorID).Msg("strikes: failed to invalidate sessions")
		}
	}

	s.deliver(ctx, notify.Notification{
		ID:      uuid.NewString(),
		ActorID: actorID,
		Kind:    notify.KindSuspension,
		Subject: "Account suspended",
		Body: fmt.Sprintf("Your account has been suspended: %s. Contact support to appeal.",
			reason),
		CreatedAt: s.now(),
	})

	result.Suspended = true
	return result, nil
}

// SanctionState returns the actor's current standing.
func (s *Service) SanctionState(ctx context.Context, actorID string) (SanctionState, error) {
	since := s.now().Add(-s.lookback)
	count, err := s.store.CountStrikesForActorSince(ctx, actorID, since)
	if err != nil {
		return SanctionState{}, fmt.Errorf("failed to count strikes for %s: %w", actorID, err)
	}

	state := SanctionState{ActorID: actorID, ActiveStrikeCount: count}

	suspension, err := s.store.GetSuspension(ctx, actorID)
	if err != nil {
		return SanctionState{}, fmt.Errorf("failed to read suspension state for %s: %w", actorID, err)
	}
	if suspension != nil {
		state.Suspended = true
		state.SuspensionReason = suspension.Reason
	}

	return state, nil
}

// IsSuspended reports whether the actor has been suspended.
func (s *Service) IsSuspended(ctx context.Context, actorID string) (bool, error) {
	suspension, err := s.store.GetSuspension(ctx, actorID)
	if err != nil {
		return false, err
	}
	return suspension != nil, nil
}

// ListStrikes returns the actor's most recent strikes.
func (s *Service) ListStrikes(ctx context.Context, actorID string, limit int) ([]Strike, error) {
	return s.store.ListStrikesForActor(ctx, actorID, limit)
}

func (s *Service) deliver(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "error").Inc()
		log.Error().Err(err).Str("actor", n.ActorID).Str("kind", string(n.Kind)).
			Msg("strikes: notification delivery failed")
		return
	}
	metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "delivered").Inc()
}

func (s *Service) lockActor(actorID string) *actorLock {
	s.mu.Lock()
	lock, ok := s.actorLocks[actorID]
	if !ok {
		lock = &actorLock{}
		s.actorLocks[actorID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *Service) unlockActor(actorID string, lock *actorLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.actorLocks, actorID)
	}
	s.mu.Unlock()
}
