package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"palisade/internal/ratelimit"
)

// routePresets maps path prefixes onto rate limit presets. Longest prefix
// wins; everything else falls under the standard API preset.
var routePresets = []struct {
	prefix string
	preset string
}{
	{"/api/auth", ratelimit.PresetAuth},
	{"/api/comments", ratelimit.PresetCreateComment},
	{"/api/interactions", ratelimit.PresetInteractions},
	{"/api/search", ratelimit.PresetSearch},
	{"/api/upload", ratelimit.PresetUpload},
}

// RateLimitMiddleware governs request admission per route class. The
// subject key is the authenticated actor when present, the client IP
// otherwise. Rejected requests get a 429 with retry information; admission
// headers are set either way.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Probes and metrics scrapes are not part of the API surface
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			// The submission pipeline charges content posts against the
			// preset itself; admitting here too would bill the same key
			// twice and halve the effective limit.
			if strings.HasPrefix(r.URL.Path, "/api/content") {
				next.ServeHTTP(w, r)
				return
			}

			preset := presetFor(r.URL.Path)

			subject := ActorID(r)
			if subject == "" {
				subject = GetClientIP(r)
			}

			res, err := limiter.CheckPreset(r.Context(), subject, preset)
			if err != nil {
				// The store already fell back locally; a hard error here
				// means even the fallback failed. Admit rather than 500
				// every request behind a broken counter.
				log.Error().Err(err).Str("preset", preset).Msg("ratelimit: admission check failed")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

			if !res.Success {
				retryAfter := int64(time.Until(res.Reset).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error":       "RATE_LIMITED",
					"message":     "Too many requests, slow down",
					"retry_after": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func presetFor(path string) string {
	for _, rp := range routePresets {
		if strings.HasPrefix(path, rp.prefix) {
			return rp.preset
		}
	}
	return ratelimit.PresetAPI
}
