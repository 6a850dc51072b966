package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"palisade/internal/counter"
	"palisade/internal/database/boltstore"
	"palisade/internal/handlers"
	"palisade/internal/moderation"
	"palisade/internal/notify"
	"palisade/internal/pipeline"
	"palisade/internal/ratelimit"
	"palisade/internal/routing"
	"palisade/internal/strikes"
	"palisade/internal/tracing"
)

func main() {
	// Configure zerolog
	// Set log level from environment (default: info)
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		// Production: JSON logs
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Development: pretty console logs
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting Palisade trust & safety service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing is optional; the service runs fine without a collector
	if os.Getenv("OTEL_TRACING") == "enabled" {
		tp, err := tracing.Init(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
		} else {
			defer tp.Shutdown(context.Background())
			log.Info().Msg("Tracing initialized")
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "18920"
	}

	// Counter store: shared Redis when configured, process-local otherwise
	var store counter.Store
	var closeStore func() error
	var redisStore *counter.RedisStore
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		var err error
		redisStore, err = counter.NewRedisStore(counter.RedisConfig{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		})
		if err != nil {
			log.Fatal().Err(err).Str("addr", addr).Msg("Failed to connect to Redis")
		}
		store = redisStore
		closeStore = redisStore.Close
		log.Info().Str("addr", addr).Msg("Counter store: redis sliding window")
	} else {
		localStore := counter.NewLocalStore(counter.LocalOptions{})
		store = localStore
		closeStore = localStore.Close
		log.Info().Msg("Counter store: process-local")
	}
	defer closeStore()

	// Strike ledger persistence
	dbPath := os.Getenv("PALISADE_DB_PATH")
	if dbPath == "" {
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to get home directory")
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		dbPath = filepath.Join(dataDir, "palisade", "palisade.db")
	}

	db, err := boltstore.Open(boltstore.Options{Path: dbPath})
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open database")
	}
	defer db.Close()
	log.Info().Str("path", dbPath).Msg("Database opened")

	limiter, err := ratelimit.NewLimiter(store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rate limiter")
	}

	// Moderation dispatcher: keyword filter always on, classifier only
	// when an endpoint is configured
	filter := moderation.NewKeywordFilter()
	var classifier moderation.Classifier
	var quota *moderation.QuotaTracker
	if url := os.Getenv("CLASSIFIER_URL"); url != "" {
		classifier, err = moderation.NewHTTPClassifier(moderation.HTTPClassifierConfig{
			BaseURL: url,
			APIKey:  os.Getenv("CLASSIFIER_API_KEY"),
			Model:   os.Getenv("CLASSIFIER_MODEL"),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create classifier client")
		}
		quota = moderation.NewQuotaTracker(store, int64(envInt("CLASSIFIER_DAILY_QUOTA", 1000)))
		log.Info().Str("url", url).Msg("Semantic classifier configured")
	} else {
		log.Info().Msg("No classifier configured, keyword filter only")
	}

	dispatcher, err := moderation.NewDispatcher(filter, classifier, quota)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create moderation dispatcher")
	}

	// Notifications: log always, publish to the platform's notification
	// consumers when Redis is shared, email when SMTP is configured
	channels := notify.Fanout{notify.NewLogNotifier()}
	if redisStore != nil {
		publisher, err := notify.NewRedisNotifier(redisStore.Client())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create notification publisher")
		}
		channels = append(channels, publisher)
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		// Address resolution belongs to the identity layer; until it
		// exposes a lookup, email notices go to the safety inbox.
		inbox := os.Getenv("SAFETY_INBOX")
		email := notify.NewEmailNotifier(notify.EmailConfig{
			Host: host,
			Port: envInt("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: os.Getenv("SMTP_FROM"),
		}, func(ctx context.Context, actorID string) (string, bool) {
			return inbox, inbox != ""
		})
		channels = append(channels, email)
		log.Info().Str("host", host).Msg("Email notifications configured")
	}
	var notifier notify.Notifier = channels
	if len(channels) == 1 {
		notifier = channels[0]
	}

	strikeService, err := strikes.NewService(db.StrikeStore(), strikes.Options{
		SuspensionThreshold: envInt("SUSPENSION_THRESHOLD", 0),
		LookbackWindow:      time.Duration(envInt("STRIKE_LOOKBACK_DAYS", 0)) * 24 * time.Hour,
		Notifier:            notifier,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strike service")
	}

	enforcement, err := pipeline.New(limiter, dispatcher, strikeService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create enforcement pipeline")
	}

	h := handlers.New(enforcement, dispatcher, strikeService)

	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Limiter:  limiter,
		Logger:   log.Logger,
	})

	server := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("address", server.Addr).
		Str("database", dbPath).
		Msg("Starting HTTP server")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

// envInt reads an integer environment variable, returning fallback when
// unset or malformed.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("name", name).Str("value", raw).Msg("Ignoring malformed integer environment variable")
		return fallback
	}
	return value
}
