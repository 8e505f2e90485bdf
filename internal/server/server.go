package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scopegate/internal/action"
	"scopegate/internal/flow"
	"scopegate/internal/view"
	"scopegate/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
	// DefaultShutdownTimeout bounds how long in-flight requests may take to finish.
	DefaultShutdownTimeout = 15 * time.Second

	// maxFormSize caps form bodies on the POST routes.
	maxFormSize = 64 << 10
)

// Flow is the subset of flow.Machine the handlers drive.
type Flow interface {
	Trigger(ctx context.Context, req flow.TriggerRequest) (flow.Outcome, error)
	FetchResource(ctx context.Context, userID, resource string) (int, []byte, error)
	CreateAnalysis(ctx context.Context, userID, stateKey, projectID, name string) (flow.Outcome, error)
	SetAnalysisStatus(ctx context.Context, userID, stateKey string, op action.SetAnalysisStatus) (flow.Outcome, error)
}

// Config holds the listener settings.
type Config struct {
	Listen            string
	RequestTimeout    time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// HTTPServer serves the scopegate routes.
type HTTPServer struct {
	config Config
	flow   Flow
	views  *view.Renderer

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates the server. Nothing listens until Serve is called.
func New(cfg Config, f Flow, views *view.Renderer) *HTTPServer {
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &HTTPServer{config: cfg, flow: f, views: views}
}

// Router builds the route table.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	// Health check endpoint for Kubernetes probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/trigger", s.handleTrigger)
	r.Post("/trigger", s.handleTrigger)
	r.Get("/Home/Trigger", s.handleTrigger)
	r.Post("/Home/Trigger", s.handleTrigger)

	r.Get(view.ResourcePath, s.handleResource)

	r.Post("/analyses", s.handleCreateAnalysis)
	r.Post("/analyses/status", s.handleSetAnalysisStatus)

	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled or the
// listener fails. In-flight requests get ShutdownTimeout to finish.
func (s *HTTPServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logging.Info("Server", "Listening on %s", s.config.Listen)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve on %s: %w", s.config.Listen, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	logging.Info("Server", "Shutting down")
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("Server", "%s %s -> %d in %v (request %s)",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
