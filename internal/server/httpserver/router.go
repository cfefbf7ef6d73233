package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/yndnr/thingvault/internal/server/httpserver/handler"
	"github.com/yndnr/thingvault/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Service executes storage commands.
	Service handler.StorageService

	// Logger for request logging.
	Logger *slog.Logger

	// Metrics is served on /metrics. Nil disables the endpoint.
	Metrics *metric.Registry

	// AdminToken guards newclient. Empty leaves it open.
	AdminToken string

	// BodyLimit caps request bodies in bytes.
	BodyLimit int64

	// RateLimit is requests per second per client. Zero disables it.
	RateLimit float64
	RateBurst int

	// TrustProxy honours X-Forwarded-For when identifying clients.
	TrustProxy bool

	// Ready backs the /ready endpoint.
	Ready func(context.Context) error
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(cfg.Service, handler.Options{
		AdminToken: cfg.AdminToken,
		BodyLimit:  cfg.BodyLimit,
		Ready:      cfg.Ready,
		Logger:     log,
	})

	limiters := NewRateLimiterRegistry(cfg.RateLimit, cfg.RateBurst)

	// Order: Recover -> RequestID -> RateLimit -> AccessLog -> Handler
	api := Chain(h,
		Recover(log),
		RequestID(),
		RateLimit(limiters, cfg.TrustProxy),
		AccessLog(log, cfg.TrustProxy),
	)
	probes := Chain(h, Recover(log), RequestID())

	mux := http.NewServeMux()
	mux.Handle(handler.APIPrefix, api)
	mux.Handle("GET /health", probes)
	mux.Handle("GET /ready", probes)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(log)))
	}
	return mux
}
