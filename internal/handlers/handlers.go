// Package handlers exposes the enforcement pipeline over HTTP to the rest
// of the platform. The identity layer in front of this service sets
// X-Actor-ID; nothing here does authentication.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"palisade/internal/middleware"
	"palisade/internal/moderation"
	"palisade/internal/pipeline"
	"palisade/internal/strikes"
)

// MaxContentLength caps the text accepted for moderation.
const MaxContentLength = 10000

// Handler holds the services the HTTP surface needs.
type Handler struct {
	pipeline   *pipeline.Pipeline
	dispatcher *moderation.Dispatcher
	strikes    *strikes.Service
}

// New creates a Handler.
func New(p *pipeline.Pipeline, d *moderation.Dispatcher, s *strikes.Service) *Handler {
	return &Handler{pipeline: p, dispatcher: d, strikes: s}
}

// ModerateRequest is the payload for a dry-run moderation check.
type ModerateRequest struct {
	Content string `json:"content"`
}

// HandleModerate produces a verdict without recording anything.
// Used by surfaces that want to warn before submission.
func (h *Handler) HandleModerate(w http.ResponseWriter, r *http.Request) {
	var req ModerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, "content is required", http.StatusBadRequest)
		return
	}
	if len(content) > MaxContentLength {
		writeError(w, "content too long", http.StatusBadRequest)
		return
	}

	verdict := h.dispatcher.Moderate(r.Context(), content)
	writeJSON(w, http.StatusOK, verdict)
}

// ContentRequest is the payload for a full pipeline submission.
type ContentRequest struct {
	Content string `json:"content"`
	PostID  string `json:"post_id,omitempty"`
	Preset  string `json:"preset,omitempty"`
}

// HandleContent runs a submission through admission, moderation, and
// escalation. A flagged post is rejected with the violation reason.
func (h *Handler) HandleContent(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.ActorID(r)
	if actorID == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req ContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, "content is required", http.StatusBadRequest)
		return
	}
	if len(content) > MaxContentLength {
		writeError(w, "content too long", http.StatusBadRequest)
		return
	}

	preset := req.Preset
	if preset == "" {
		preset = "createPost"
	}

	outcome, err := h.pipeline.Submit(r.Context(), pipeline.Submission{
		ActorID:       actorID,
		Preset:        preset,
		Content:       content,
		RelatedPostID: req.PostID,
	})

	switch {
	case errors.Is(err, pipeline.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":   "RATE_LIMITED",
			"message": "Too many requests, slow down",
			"reset":   outcome.RateLimit.Reset.Unix(),
		})
		return
	case errors.Is(err, pipeline.ErrSuspended):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":   "ACCOUNT_SUSPENDED",
			"message": "Your account is suspended",
		})
		return
	case err != nil:
		log.Error().Err(err).Str("actor", actorID).Msg("handlers: content submission failed")
		writeError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if outcome.Verdict.IsViolation {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":        "CONTENT_REJECTED",
			"message":      outcome.Verdict.Reason,
			"verdict":      outcome.Verdict,
			"strike_count": outcome.StrikeCount,
			"suspended":    outcome.Suspended,
		})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// HandleQuota returns the classifier quota snapshot.
func (h *Handler) HandleQuota(w http.ResponseWriter, r *http.Request) {
	status, err := h.dispatcher.QuotaStatus(r.Context())
	if err != nil {
		writeError(w, "Quota tracking not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleSanctions returns an actor's active strike count and suspension
// state.
func (h *Handler) HandleSanctions(w http.ResponseWriter, r *http.Request) {
	actorID := r.PathValue("actor")
	if actorID == "" {
		writeError(w, "actor is required", http.StatusBadRequest)
		return
	}

	state, err := h.strikes.SanctionState(r.Context(), actorID)
	if err != nil {
		log.Error().Err(err).Str("actor", actorID).Msg("handlers: sanction lookup failed")
		writeError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// HandleHealthz is a liveness probe.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("handlers: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
