package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/audit"
	"github.com/ziadkadry99/claimwise/internal/logging"
	"github.com/ziadkadry99/claimwise/internal/metrics"
	"github.com/ziadkadry99/claimwise/internal/pipeline"
)

// Config holds server configuration.
type Config struct {
	Port int
	// CORSOrigins lists allowed origins; empty allows localhost only and
	// "*" allows everything.
	CORSOrigins []string
	// Model is the generation model reported by /health.
	Model string
}

// Server exposes the query pipeline over HTTP.
type Server struct {
	cfg        Config
	orch       *pipeline.Orchestrator
	audit      *audit.Store
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server for orch. auditStore may be nil, in which case the
// audit routes are not mounted.
func New(cfg Config, orch *pipeline.Orchestrator, auditStore *audit.Store, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		orch:   orch,
		audit:  auditStore,
		logger: logging.OrNop(logger),
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(s.cfg.CORSOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.CORSOrigins
	}
	for _, o := range corsOpts.AllowedOrigins {
		if o == "*" {
			// Credentials cannot be combined with a wildcard origin.
			corsOpts.AllowCredentials = false
		}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	metrics.Register()
	r.Handle("/metrics", promhttp.Handler())

	// The websocket outlives the request timeout below.
	r.Get("/ws/chat", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)

		r.Post("/query", s.handleQuery)
		r.Post("/claim-decision", s.handleClaimDecision)
		r.Post("/query-with-decision", s.handleQueryWithDecision)
		r.Post("/chat", s.handleChat)

		r.Get("/history/{user_id}", s.handleGetHistory)
		r.Delete("/history/{user_id}", s.handleClearHistory)
		r.Get("/users", s.handleUsers)

		if s.audit != nil {
			audit.RegisterRoutes(r, s.audit)
		}
	})

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("claimwise server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
