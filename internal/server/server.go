// Package server exposes ingestion, snapshot and reporting operations over HTTP.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/marketlens/internal/ingest"
	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/narrative"
	"github.com/sells-group/marketlens/internal/snapshot"
)

// Ingestor stores, normalizes and snapshots uploads.
type Ingestor interface {
	Intake(ctx context.Context, workspaceID, originalName string, r io.Reader) (*model.Upload, error)
	NormalizeUpload(ctx context.Context, uploadID string) (*model.NormalizationSummary, error)
	NormalizeMany(ctx context.Context, uploadIDs []string) (*ingest.BatchResult, error)
	RebuildSnapshots(ctx context.Context, workspaceID string, date *time.Time) (*snapshot.Result, error)
}

// SnapshotReader reads stored snapshots for the dashboard.
type SnapshotReader interface {
	ListExecutiveSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ExecutiveSnapshot, error)
	ListChannelSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ChannelSnapshot, error)
}

// InsightGenerator produces period-over-period insights.
type InsightGenerator interface {
	Generate(ctx context.Context, workspaceID string, start, end time.Time) ([]model.Insight, error)
}

// Narrator produces the localized narrative for a period.
type Narrator interface {
	Narrate(ctx context.Context, workspaceID string, start, end time.Time) (*narrative.Output, error)
}

// Deps are the collaborators behind the API.
type Deps struct {
	Ingest    Ingestor
	Snapshots SnapshotReader
	Insights  InsightGenerator
	Narrative Narrator
}

// Options tune the HTTP surface.
type Options struct {
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Server is the HTTP API.
type Server struct {
	deps    Deps
	opts    Options
	limiter *clientLimiter
}

// New creates a Server.
func New(deps Deps, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	return &Server{
		deps:    deps,
		opts:    opts,
		limiter: newClientLimiter(opts.RateLimit, opts.RateBurst),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limiter.middleware)

		r.Post("/uploads", s.handleUpload)
		r.Post("/uploads/{id}/normalize", s.handleNormalize)
		r.Post("/normalize", s.handleNormalizeMany)

		r.Route("/workspaces/{ws}", func(r chi.Router) {
			r.Post("/snapshots", s.handleRebuildSnapshots)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/insights", s.handleInsights)
			r.Get("/narrative", s.handleNarrative)
		})
	})
	return r
}
