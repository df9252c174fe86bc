package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/spendboard/spendboard/internal/observability"
	"github.com/spendboard/spendboard/internal/platform/httpx"
	reportshttp "github.com/spendboard/spendboard/internal/reports/http"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	ReportHandler *reportshttp.Handler
	Metrics       *observability.Metrics
	// Health reports dependency status for /healthz; nil means always healthy.
	Health func(r *http.Request) error
}

type healthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache,omitempty"`
}

// NewRouter constructs the chi.Router with spendboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if params.Health != nil {
			resp.Cache = "ok"
			if err := params.Health(r); err != nil {
				// Uploads still work without the cache, so report degraded instead of failing.
				resp.Status = "degraded"
				resp.Cache = err.Error()
			}
		}
		httpx.JSON(w, http.StatusOK, resp)
	})

	if params.ReportHandler != nil {
		params.ReportHandler.MountRoutes(r)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported on "+r.URL.Path)
	})

	return r
}
