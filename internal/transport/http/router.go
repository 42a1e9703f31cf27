// Package httptransport assembles the HTTP surface: middleware chain, KYC
// routes, health and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"kycgate/internal/kyc/handler"
	"kycgate/internal/platform/metrics"
	"kycgate/pkg/platform/httputil"
	"kycgate/pkg/platform/middleware/admin"
	"kycgate/pkg/platform/middleware/auth"
	"kycgate/pkg/platform/middleware/metadata"
	"kycgate/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces the router mounts. Metrics and Gatherer may be nil.
type Deps struct {
	Logger       *slog.Logger
	JWTValidator auth.JWTValidator
	KYC          *handler.Handler
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Health       map[string]HealthCheck
}

// NewRouter wires public, authenticated and admin routes.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(deps.Metrics.Middleware)

	r.Get("/health", healthHandler(deps.Health))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.JWTValidator, deps.Logger))
		deps.KYC.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(deps.Logger))
			deps.KYC.RegisterAdmin(r)
		})
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// healthHandler runs every check concurrently and answers 503 if any fails.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(names))
			healthy = true
		)
		var g errgroup.Group
		for _, name := range names {
			check := checks[name]
			g.Go(func() error {
				result := "ok"
				if err := check(ctx); err != nil {
					result = err.Error()
				}
				mu.Lock()
				defer mu.Unlock()
				results[name] = result
				if result != "ok" {
					healthy = false
				}
				return nil
			})
		}
		_ = g.Wait()

		resp := healthResponse{Status: "ok", Checks: results}
		status := http.StatusOK
		if !healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
