// Package server exposes the intake, record and report operations over a
// JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/nuam/internal/activity"
	"github.com/Veraticus/nuam/internal/intake"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/records"
	"github.com/Veraticus/nuam/internal/report"
	"github.com/Veraticus/nuam/internal/service"
)

// IdentityHeader carries the username authenticated by the fronting proxy.
const IdentityHeader = "X-Remote-User"

// Roles allowed on each guarded group of routes.
var (
	uploaders     = []model.Role{model.RoleBroker, model.RoleAnalyst, model.RoleAdministrator}
	recordEditors = []model.Role{model.RoleAdministrator, model.RoleAnalyst}
	admins        = []model.Role{model.RoleAdministrator}
	errorReaders  = []model.Role{model.RoleAnalyst, model.RoleAdministrator, model.RoleAuditor}
	auditReaders  = []model.Role{model.RoleAdministrator, model.RoleAuditor}
	consolidators = []model.Role{model.RoleManager, model.RoleAdministrator, model.RoleAuditor}
	managers      = []model.Role{model.RoleManager, model.RoleAdministrator}
	everyone      = []model.Role{model.RoleBroker, model.RoleAnalyst, model.RoleAdministrator, model.RoleAuditor, model.RoleManager}
)

// Options configures a Server.
type Options struct {
	Logger         *slog.Logger
	MaxUploadBytes int64
}

// Server handles API requests.
type Server struct {
	store    service.Storage
	intake   *intake.Service
	records  *records.Service
	activity *activity.Log
	reports  *report.Reporter
	logger   *slog.Logger
	now      func() time.Time
	maxBytes int64
}

// New wires a server over store. Uploads are kept under uploadDir.
func New(store service.Storage, uploadDir string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}

	log := activity.NewLog(store, logger)
	return &Server{
		store:    store,
		intake:   intake.NewService(store, log, log, uploadDir, logger),
		records:  records.NewService(store, log),
		activity: log,
		reports:  report.NewReporter(store),
		logger:   logger,
		now:      time.Now,
		maxBytes: maxBytes,
	}
}

// Routes returns the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.identify)

		r.With(RequireRoles(uploaders...)).Post("/uploads", s.handleUploadTabular)

		r.Route("/pdfs", func(r chi.Router) {
			r.Use(RequireRoles(everyone...))
			r.Post("/", s.handleUploadPDF)
			r.Get("/", s.handleListPDFs)
		})

		r.Route("/files", func(r chi.Router) {
			r.With(RequireRoles(everyone...)).Get("/", s.handleListFiles)
			r.With(RequireRoles(everyone...)).Get("/{id}", s.handleGetFile)
			r.With(RequireRoles(errorReaders...)).Get("/{id}/errors", s.handleFileErrors)
		})

		r.Route("/records", func(r chi.Router) {
			r.With(RequireRoles(everyone...)).Get("/", s.handleListRecords)
			r.With(RequireRoles(recordEditors...)).Post("/", s.handleCreateRecord)
			r.With(RequireRoles(everyone...)).Get("/{id}", s.handleGetRecord)
			r.With(RequireRoles(admins...)).Put("/{id}", s.handleUpdateRecord)
			r.With(RequireRoles(admins...)).Delete("/{id}", s.handleDeleteRecord)
		})

		r.With(RequireRoles(errorReaders...)).Get("/errors", s.handleListErrors)
		r.With(RequireRoles(auditReaders...)).Get("/audit", s.handleAudit)

		r.Route("/reports", func(r chi.Router) {
			r.With(RequireRoles(consolidators...)).Get("/consolidated", s.handleConsolidated)
			r.With(RequireRoles(everyone...)).Get("/records", s.handleRecordsReport)
			r.With(RequireRoles(managers...)).Get("/management.pdf", s.handleManagementPDF)
		})
		r.With(RequireRoles(managers...)).Get("/dashboard", s.handleDashboard)

		r.Route("/notifications", func(r chi.Router) {
			r.Use(RequireRoles(everyone...))
			r.Get("/", s.handleNotifications)
			r.Post("/{id}/read", s.handleMarkRead)
		})
	})

	return r
}

// ListenAndServe serves the API on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
