package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/lab"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/limiter"
)

// Options tune the HTTP surface. Zero values disable rate limiting and
// allow any origin.
type Options struct {
	AllowedOrigins []string

	// Submissions per minute per client, with burst, and the cap on
	// submissions executing at once.
	RunsPerMinute float64
	RunBurst      int
	MaxConcurrent int
}

// Server is the HTTP server for the lab portal API.
type Server struct {
	svc     *lab.Service
	opts    Options
	runs    *RunManager
	limiter *limiter.RateLimiter
	router  chi.Router
	http    *http.Server
	stop    context.CancelFunc
}

// New creates a new Server.
func New(svc *lab.Service, opts Options) *Server {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		svc:    svc,
		opts:   opts,
		runs:   NewRunManager(),
		router: chi.NewRouter(),
		stop:   stop,
	}
	if opts.RunsPerMinute > 0 {
		s.limiter = limiter.New(opts.RunsPerMinute, max(opts.RunBurst, 1), opts.MaxConcurrent)
		s.limiter.StartCleanup(ctx, 10*time.Minute)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsHandler())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		// Labs
		r.Get("/labs", s.handleListLabs)
		r.Post("/labs", s.handleCreateLab)
		r.Get("/labs/{id}", s.handleGetLab)
		r.With(s.throttle).Post("/labs/{id}/run", s.handleRun)
		r.Post("/labs/{id}/save", s.handleSave)

		// WebSocket (no JSON content-type)
		r.Get("/labs/{id}/ws", s.handleWebSocket)

		// Users
		r.Post("/users", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/users/{id}/sessions", s.handleUserSessions)

		// Sessions
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Patch("/sessions/{id}/score", s.handleUpdateScore)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}

// throttle applies the submission rate limit when one is configured.
func (s *Server) throttle(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(next)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("Lab portal starting on http://localhost%s", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	s.stop()
	s.runs.CloseAll()

	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
