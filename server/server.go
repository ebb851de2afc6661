// Package server exposes health, registration and login api, plus announcements stats and search
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umputun/announcer/pkg/domain"
	"github.com/umputun/announcer/pkg/monitor"
)

//go:generate moq -out mocks/config.go -pkg mocks -skip-ensure -fmt goimports . ConfigProvider
//go:generate moq -out mocks/auth.go -pkg mocks -skip-ensure -fmt goimports . AuthService
//go:generate moq -out mocks/announcements.go -pkg mocks -skip-ensure -fmt goimports . Announcements
//go:generate moq -out mocks/user_store.go -pkg mocks -skip-ensure -fmt goimports . UserStore

// Server represents HTTP server instance
type Server struct {
	config        ConfigProvider
	auth          AuthService
	announcements Announcements
	store         UserStore
	gatherer      prometheus.Gatherer
	version       string
	debug         bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// AuthService registers users and checks credentials
type AuthService interface {
	Register(ctx context.Context, username, password string) (domain.UserRecord, error)
	Login(ctx context.Context, username, password string) (domain.UserRecord, error)
}

// Announcements gives access to the feed and downloaded files, optional
type Announcements interface {
	Search(ctx context.Context, company string) ([]domain.FeedItem, error)
	Stats() (monitor.Stats, error)
}

// UserStore reports user store state for health check, optional
type UserStore interface {
	Ping(ctx context.Context) error
	CountUsers(ctx context.Context) (int, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Params holds optional server dependencies
type Params struct {
	Announcements Announcements       // enables /api/stats and /api/search
	Store         UserStore           // adds database state to /api/health
	Gatherer      prometheus.Gatherer // enables /metrics
	Version       string
	Debug         bool
}

// New initializes a new server instance
func New(cfg ConfigProvider, auth AuthService, params Params) *Server {
	s := &Server{
		config:        cfg,
		auth:          auth,
		announcements: params.Announcements,
		store:         params.Store,
		gatherer:      params.Gatherer,
		version:       params.Version,
		debug:         params.Debug,
		router:        routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("announcer", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024)) // credentials only
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /health", s.healthHandler)
		r.HandleFunc("POST /register", s.registerHandler)
		r.HandleFunc("POST /login", s.loginHandler)
		if s.announcements != nil {
			r.HandleFunc("GET /stats", s.statsHandler)
			r.HandleFunc("GET /search", s.searchHandler)
		}
	})

	if s.gatherer != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}
