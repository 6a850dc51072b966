// Package pipeline wires the enforcement stages together: rate limit
// admission, moderation triage, and strike escalation.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"palisade/internal/moderation"
	"palisade/internal/ratelimit"
	"palisade/internal/strikes"
)

// Sentinel errors callers branch on. Everything else that comes out of
// Submit is a persistence failure.
var (
	// ErrRateLimited means admission was denied; the outcome still
	// carries the retry information.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrSuspended means the actor has lost posting privileges.
	ErrSuspended = errors.New("account suspended")
)

// Pipeline runs a content submission through the full enforcement path.
type Pipeline struct {
	limiter    *ratelimit.Limiter
	dispatcher *moderation.Dispatcher
	strikes    *strikes.Service
}

// New creates a Pipeline.
func New(limiter *ratelimit.Limiter, dispatcher *moderation.Dispatcher, strikeService *strikes.Service) (*Pipeline, error) {
	if limiter == nil || dispatcher == nil || strikeService == nil {
		return nil, fmt.Errorf("limiter, dispatcher, and strike service are all required")
	}
	return &Pipeline{
		limiter:    limiter,
		dispatcher: dispatcher,
		strikes:    strikeService,
	}, nil
}

// Submission is one piece of content from an already-authenticated actor.
type Submission struct {
	// ActorID is the authenticated actor, supplied by the identity layer.
	ActorID string

	// Preset names the rate limit class of the submitting surface
	// (createPost, createComment, ...).
	Preset string

	// Content is the raw text to moderate.
	Content string

	// RelatedPostID links an eventual strike back to the post, if any.
	RelatedPostID string
}

// Outcome is the full result of one submission.
type Outcome struct {
	Verdict     moderation.Verdict `json:"verdict"`
	RateLimit   ratelimit.Result   `json:"rate_limit"`
	StrikeCount int                `json:"strike_count,omitempty"`
	Suspended   bool               `json:"suspended"`
}

// Submit runs the pipeline for one submission:
// admission -> standing check -> verdict -> escalation on violation.
// ErrRateLimited and ErrSuspended reject the submission with a populated
// outcome; any other error is a persistence failure.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	rl, err := p.limiter.CheckPreset(ctx, sub.ActorID, sub.Preset)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{RateLimit: rl}
	if !rl.Success {
		return outcome, ErrRateLimited
	}

	suspended, err := p.strikes.IsSuspended(ctx, sub.ActorID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to check standing for %s: %w", sub.ActorID, err)
	}
	if suspended {
		outcome.Suspended = true
		return outcome, ErrSuspended
	}

	outcome.Verdict = p.dispatcher.Moderate(ctx, sub.Content)
	if !outcome.Verdict.IsViolation {
		return outcome, nil
	}

	result, err := p.strikes.RecordStrike(ctx, sub.ActorID, strikes.StrikeInput{
		ViolationType: outcome.Verdict.ViolationType,
		Content:       sub.Content,
		RelatedPostID: sub.RelatedPostID,
		Reason:        outcome.Verdict.Reason,
	})
	if err != nil {
		// The verdict stands even when the ledger write fails; surface
		// the failure so the caller can reject the post.
		log.Error().Err(err).Str("actor", sub.ActorID).Msg("pipeline: failed to record strike")
		return outcome, err
	}

	outcome.StrikeCount = result.StrikeCount
	outcome.Suspended = result.Suspended
	return outcome, nil
}
