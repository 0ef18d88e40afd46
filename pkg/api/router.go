package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/yamlauth/internal/logger"
	"github.com/marmos91/yamlauth/pkg/api/handlers"
	apimw "github.com/marmos91/yamlauth/pkg/api/middleware"
)

// Dependencies are the collaborators the router dispatches to. Any of them
// may be nil; the matching routes are then not mounted (Store is the
// exception: readiness simply fails without it).
type Dependencies struct {
	Auth     handlers.Authenticator
	Reloader handlers.Reloader
	Store    handlers.StoreStatus

	// Gatherer, when set, is exposed on GET /metrics.
	Gatherer prometheus.Gatherer

	// AdminToken protects POST /reload when non-empty.
	AdminToken string
}

// NewRouter creates the chi router with its middleware and routes.
//
// Routes:
//   - POST /auth         - authenticate a username/password pair
//   - GET  /health       - liveness probe
//   - GET  /health/ready - readiness probe (credentials loaded)
//   - POST /reload       - re-read the users file
//   - GET  /metrics      - Prometheus metrics
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimw.LogContext)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.Store)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if deps.Auth != nil {
		r.Post("/auth", handlers.NewAuthHandler(deps.Auth).Authenticate)
	}

	if deps.Reloader != nil {
		reloadHandler := handlers.NewReloadHandler(deps.Reloader, deps.Store)
		r.With(apimw.AdminToken(deps.AdminToken)).Post("/reload", reloadHandler.Reload)
	}

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs each request through the internal logger: the start at
// DEBUG and the completion at INFO (DEBUG for probes and scrapes).
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		logger.DebugCtx(ctx, "API request started",
			logger.KeyMethod, r.Method,
			logger.KeyURI, r.URL.Path,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		args := []any{
			logger.KeyMethod, r.Method,
			logger.KeyURI, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(start),
		}
		if isProbe(r.URL.Path) {
			logger.DebugCtx(ctx, "API request completed", args...)
			return
		}
		logger.InfoCtx(ctx, "API request completed", args...)
	})
}

func isProbe(path string) bool {
	switch path {
	case "/health", "/health/", "/health/ready", "/metrics":
		return true
	}
	return false
}
