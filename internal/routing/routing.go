package routing

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"palisade/internal/handlers"
	"palisade/internal/middleware"
	"palisade/internal/ratelimit"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Limiter  *ratelimit.Limiter
	Logger   zerolog.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Moderation surface
	mux.HandleFunc("POST /api/moderate", h.HandleModerate)
	mux.HandleFunc("POST /api/content", h.HandleContent)
	mux.HandleFunc("GET /api/quota", h.HandleQuota)
	mux.HandleFunc("GET /api/sanctions/{actor}", h.HandleSanctions)

	// Operational endpoints, outside the rate-limited API surface
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Wrap innermost to outermost; logging sees every request first
	var handler http.Handler = mux
	handler = middleware.LimitBodyMiddleware(handler)
	handler = middleware.RateLimitMiddleware(cfg.Limiter)(handler)
	handler = middleware.SecurityHeadersMiddleware(handler)
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	return handler
}
