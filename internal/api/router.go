// Package api implements the gateway's HTTP surface: route dispatch for the
// four player-lookup platforms, CORS preflight, the edge response cache,
// and the ambient /metrics and /healthz operability endpoints. Built on
// go-chi/chi/v5 following the teacher's SetupChi composition style: global
// middleware registered via r.Use, route groups via r.Route.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nodecraft/identity-gateway/internal/analytics"
	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/background"
	"github.com/nodecraft/identity-gateway/internal/cache"
	hytalesession "github.com/nodecraft/identity-gateway/internal/hytale"
	"github.com/nodecraft/identity-gateway/internal/logging"
	"github.com/nodecraft/identity-gateway/internal/metrics"
	"github.com/nodecraft/identity-gateway/internal/player"
)

// Lookup is the shape every platform pipeline's Lookup method implements.
type Lookup func(ctx context.Context, q string) (*player.Profile, error)

// Deps are the gateway's wired collaborators, one per platform pipeline
// plus the cross-cutting edge cache, analytics sink, and Hytale manager
// (for the readiness probe).
type Deps struct {
	Minecraft     Lookup
	Steam         Lookup
	Xbox          Lookup
	Hytale        Lookup
	EdgeStore     cache.Store
	Group         *background.Group
	Analytics     *analytics.Sink
	HytaleManager *hytalesession.Manager
	BadgerStore   *cache.BadgerStore
	RateLimitRPM  int
}

// NewRouter builds the gateway's chi.Mux.
func NewRouter(deps Deps) http.Handler {
	pipelines := map[string]Lookup{
		"minecraft": deps.Minecraft,
		"steam":     deps.Steam,
		"xbox":      deps.Xbox,
		"hytale":    deps.Hytale,
	}

	rpm := deps.RateLimitRPM
	if rpm <= 0 {
		rpm = 600
	}

	r := chi.NewRouter()
	r.Use(requestID())
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	}))
	r.Use(httprate.Limit(rpm, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	r.Use(EdgeCache(deps.EdgeStore, deps.Group))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", healthHandler(deps))

	r.Get("/api/player/{platform}/{query}", playerHandler(pipelines, deps.Analytics))

	r.NotFound(notFoundHandler(deps.Analytics))

	return r
}

// playerHandler dispatches GET /api/player/{platform}/{query} to the
// matching pipeline, writes the response envelope, and records an
// analytics point.
func playerHandler(pipelines map[string]Lookup, sink *analytics.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		platform := chi.URLParam(r, "platform")
		query := chi.URLParam(r, "query")

		lookup, ok := pipelines[strings.ToLower(platform)]
		if !ok {
			err := apperr.Fail(apperr.CodeNotFoundRoute, nil)
			respondError(w, r, sink, "player.lookup", "", start, err)
			return
		}

		profile, err := lookup(r.Context(), query)
		if err != nil {
			metrics.LookupsTotal.WithLabelValues(platform, "error").Inc()
			metrics.LookupDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
			respondError(w, r, sink, platform, "", start, err)
			return
		}

		metrics.LookupsTotal.WithLabelValues(platform, "success").Inc()
		metrics.LookupDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
		setResolvedPlayerID(r.Context(), strings.ToLower(profile.ID))
		writeSuccess(w, profile)
		recordPoint(r, sink, platform, "", start, false, http.StatusOK, "")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, sink *analytics.Sink, platform, requestType string, start time.Time, err error) {
	status, _ := writeFailure(w, err)

	errCode := ""
	if !apperr.IsUserFacing(err) {
		if appErr, ok := apperr.As(err); ok {
			errCode = string(appErr.Code)
		} else {
			errCode = string(apperr.CodeUnknownError)
		}
	}
	recordPoint(r, sink, platform, requestType, start, false, status, errCode)
}

func recordPoint(r *http.Request, sink *analytics.Sink, platform, requestType string, start time.Time, cached bool, status int, errCode string) {
	if sink == nil {
		return
	}
	sink.WritePoint(r.Context(), analytics.Point{
		Type:           platform,
		Error:          errCode,
		RequestType:    requestType,
		URL:            r.URL.Path,
		UserAgent:      r.Header.Get("User-Agent"),
		Referer:        r.Header.Get("Referer"),
		Protocol:       r.Proto,
		TLSVersion:     tlsVersionString(r),
		Cached:         cached,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Status:         status,
	})
}

func tlsVersionString(r *http.Request) string {
	if r.TLS == nil {
		return ""
	}
	switch r.TLS.Version {
	case 0x0304:
		return "TLSv1.3"
	case 0x0303:
		return "TLSv1.2"
	case 0x0302:
		return "TLSv1.1"
	case 0x0301:
		return "TLSv1.0"
	default:
		return ""
	}
}

func notFoundHandler(sink *analytics.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		err := apperr.Fail(apperr.CodeNotFoundRoute, nil)
		respondError(w, r, sink, "route", "", start, err)
	}
}

// requestID stamps every request with an X-Request-ID (generated if the
// caller didn't supply one) and attaches a request-scoped logger to the
// context, following the teacher's RequestIDWithLogging middleware.
func requestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := logging.ContextWithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// healthHandler reports the Hytale manager's pool size and the Badger
// store's openness, answering 503 when the store has closed; the pool size
// does not affect the status.
func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := true
		body := map[string]any{"status": "ok"}
		if deps.HytaleManager != nil {
			body["hytale_pool_size"] = deps.HytaleManager.PoolSize(r.Context())
		}
		if deps.BadgerStore != nil {
			open := deps.BadgerStore.IsOpen()
			body["cache_store_open"] = open
			ready = ready && open
		}

		status := http.StatusOK
		if !ready {
			body["status"] = "not_ready"
			status = http.StatusServiceUnavailable
		}
		raw, _ := json.Marshal(body)
		writeJSON(w, status, "no-store", raw)
	}
}
