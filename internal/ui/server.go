// Package ui serves the lineage dashboard.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaplineage/internal/pipeline"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
	"github.com/leapstack-labs/leaplineage/internal/ui/router"
)

const (
	debounceDelay   = 100 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

// Config holds configuration for the UI server.
type Config struct {
	Port int
	// Watch re-harvests when a manifest under ReposDir changes.
	Watch        bool
	ReposDir     string
	ManifestName string
	// Refresh is an optional cron spec for periodic re-harvests.
	Refresh       string
	SessionSecret string
	Source        common.Source
	Store         state.Store
	// Pipeline runs a refresh. Without it watch and cron only re-broadcast.
	Pipeline *pipeline.Pipeline
	Logger   *slog.Logger
}

// Server is the dashboard server.
type Server struct {
	cfg          Config
	sessionStore *sessions.CookieStore
	logger       *slog.Logger
	notifier     *notifier.Notifier
	metrics      *Metrics

	refreshMu sync.Mutex
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ManifestName == "" {
		cfg.ManifestName = "project.yaml"
	}
	secret := cfg.SessionSecret
	if secret == "" {
		secret = uuid.NewString()
	}

	sessionStore := sessions.NewCookieStore([]byte(secret))
	sessionStore.MaxAge(86400 * 30)
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	notify := notifier.New()
	s := &Server{
		cfg:          cfg,
		sessionStore: sessionStore,
		logger:       logger,
		notifier:     notify,
		metrics:      NewMetrics(prometheus.NewRegistry(), notify),
	}
	if cfg.Pipeline != nil && cfg.Pipeline.Observer == nil {
		cfg.Pipeline.Observer = s.metrics
	}
	return s
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Metrics returns the server's metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler builds the routed handler with middleware.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	err := router.SetupRoutes(r, router.Deps{
		Source:       s.cfg.Source,
		Store:        s.cfg.Store,
		SessionStore: s.sessionStore,
		Notifier:     s.notifier,
		Metrics:      s.metrics.Handler(),
		Logger:       s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	if snap, err := s.cfg.Source.Snapshot(ctx); err == nil {
		s.metrics.SetSnapshot(snap)
	} else {
		s.logger.Warn("failed to read initial snapshot", "error", err)
	}

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.cfg.Port), "source", s.cfg.Source.Name())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	if s.cfg.Refresh != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.cfg.Refresh, func() { s.Refresh(egctx, "schedule") }); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", s.cfg.Refresh, err)
		}
		c.Start()
		s.logger.Info("scheduled refresh", "schedule", s.cfg.Refresh)
		eg.Go(func() error {
			<-egctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Refresh re-harvests through the pipeline, then pings every open page.
// Overlapping refreshes run one after the other.
func (s *Server) Refresh(ctx context.Context, reason string) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.cfg.Pipeline != nil {
		s.logger.Debug("refreshing", "reason", reason)
		if _, err := s.cfg.Pipeline.Run(ctx); err != nil {
			s.logger.Error("refresh failed", "reason", reason, "error", err)
		}
	}
	s.notifier.Broadcast()
}

// isManifest reports whether a watched path is a manifest file.
func (s *Server) isManifest(path string) bool {
	base := filepath.Base(path)
	if base == s.cfg.ManifestName {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	return ext == ".yaml" || ext == ".yml"
}

// watchFiles watches the repos directory and refreshes on manifest changes.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, s.cfg.ReposDir); err != nil {
		// keep serving without live reload
		s.logger.Error("failed to watch repos directory", "path", s.cfg.ReposDir, "error", err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				// new repositories are picked up as they appear
				_ = watcher.Add(event.Name)
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !s.isManifest(event.Name) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				s.logger.Debug("manifest changed", "file", name)
				s.Refresh(ctx, "watch")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
