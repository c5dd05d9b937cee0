package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markdave123-py/Coursewise/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Coursewise/internal/api/middlewares"
	"github.com/markdave123-py/Coursewise/internal/config"
)

// Routes are the collaborators the HTTP surface needs.
type Routes struct {
	Materials    handlers.MaterialService
	Generation   handlers.GenerationService
	Ingestion    handlers.IngestionRunner
	Metrics      prometheus.Gatherer
	JWTSecret    string
	IngestSecret string
	CORSOrigins  []string
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg *config.Config, logger *slog.Logger, routes Routes) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(routes, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter wires every route.
func NewRouter(routes Routes, logger *slog.Logger) http.Handler {
	materialHandler := handlers.NewMaterialHandler(routes.Materials, logger)
	generationHandler := handlers.NewGenerationHandler(routes.Generation, logger)
	ingestHandler := handlers.NewIngestHandler(routes.Ingestion, logger)

	origins := routes.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appMiddleware.IngestSecretHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if routes.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(routes.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		// Ingestion runs a whole batch; it gets no request timeout.
		api.Group(func(ingest chi.Router) {
			ingest.Use(appMiddleware.IngestSecret(routes.IngestSecret, logger))
			ingest.Post("/ingestion/run", ingestHandler.Run)
			ingest.Get("/ingestion/run", ingestHandler.Run)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(routes.JWTSecret))
			protected.Use(middleware.Timeout(5 * time.Minute))

			protected.Post("/materials", materialHandler.Upload)
			protected.Get("/materials/{id}", materialHandler.Get)

			protected.Route("/classes/{classID}", func(class chi.Router) {
				class.Post("/blueprint", generationHandler.Blueprint)
				class.Post("/quiz", generationHandler.Quiz)
				class.Post("/flashcards", generationHandler.Flashcards)
				class.Post("/chat", generationHandler.Chat)
			})
		})
	})

	return r
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
