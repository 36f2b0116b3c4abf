// Package web serves the katas site over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/eleven-am/katas/internal/config"
	"github.com/eleven-am/katas/internal/importer"
	"github.com/eleven-am/katas/internal/kata"
	"github.com/eleven-am/katas/internal/logger"
	"github.com/eleven-am/katas/internal/markdown"
	"github.com/eleven-am/katas/internal/metrics"
	"github.com/eleven-am/katas/internal/prompt"
	"github.com/eleven-am/katas/internal/session"
	"github.com/eleven-am/katas/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the handlers call into.
type Deps struct {
	Store    *store.Store
	Sessions *session.Manager
	Markdown *markdown.Renderer
	Compiler *prompt.Compiler
	Importer *importer.Importer
	Metrics  *metrics.Metrics
	Logger   logger.Logger
}

// Server is the HTTP front end.
type Server struct {
	echo     *echo.Echo
	store    *store.Store
	sessions *session.Manager
	markdown *markdown.Renderer
	compiler *prompt.Compiler
	importer *importer.Importer
	metrics  *metrics.Metrics
	log      logger.Logger
	config   config.ServerConfig
}

// NewServer wires routes and middleware. Store and Sessions are required;
// the rest default to their standard implementations.
func NewServer(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager cannot be nil")
	}
	if deps.Markdown == nil {
		deps.Markdown = markdown.New()
	}
	if deps.Compiler == nil {
		deps.Compiler = prompt.NewCompiler(deps.Store)
	}
	if deps.Importer == nil {
		deps.Importer = importer.New(deps.Store)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Get()
	}
	if deps.Logger == nil {
		deps.Logger = logger.HTTP()
	}

	renderer, err := newTemplateRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	s := &Server{
		echo:     e,
		store:    deps.Store,
		sessions: deps.Sessions,
		markdown: deps.Markdown,
		compiler: deps.Compiler,
		importer: deps.Importer,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		config:   cfg,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("8M"))
	e.Use(s.requestLogger)
	e.Use(s.instrument)
	e.Use(s.loadUser)

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/", s.handleIndex)
	e.GET("/login", s.handleLoginForm)
	e.POST("/login", s.handleLogin)
	e.GET("/logout", s.handleLogout)
	e.POST("/preview", s.handlePreview)
	e.GET("/autocomplete", s.handleAutocomplete)
	e.GET("/kata/:id", s.handleViewKata)

	auth := s.requireUser
	e.GET("/submit", s.handleSubmitForm, auth)
	e.POST("/submit", s.handleSubmit, auth)
	for _, kind := range kata.ActionKinds {
		e.POST("/kata/:id/"+string(kind), s.handleToggle(kind), auth)
	}
	e.POST("/kata/:id/note", s.handleNote, auth)
	e.POST("/kata/:id/delete", s.handleDeleteKata, auth)
	e.GET("/saved", s.handleActionList(kata.ActionSave, "Saved Katas"), auth)
	e.GET("/completed", s.handleActionList(kata.ActionComplete, "Completed Katas"), auth)
	e.GET("/my_katas", s.handleMyKatas, auth)
	e.POST("/bulk_upload_katas", s.handleBulkUpload, auth)
	e.GET("/prompts", s.handlePrompts, auth)
	e.POST("/save_prompt", s.handleSavePrompt, auth)
	e.GET("/get_prompt/:id", s.handleGetPrompt, auth)
	e.POST("/delete_prompt/:id", s.handleDeletePrompt, auth)
	e.POST("/compile_prompt", s.handleCompilePrompt, auth)
	e.GET("/delete_account", s.handleDeleteAccount, auth)
	e.POST("/delete_account", s.handleDeleteAccount, auth)
}

// ServeHTTP lets the server be mounted or exercised directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.log.Info("starting http server", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.log.Warn("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
