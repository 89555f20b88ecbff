package http

import (
	"context"
	"domoticz-hue-emulator/internal/infrastructure/metrics"
	"domoticz-hue-emulator/internal/ports"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 10 * time.Second

// Logger is the logging interface the server needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options describe how the bridge advertises itself.
type Options struct {
	Host        string // Address clients reach the bridge on
	Port        int
	MetricsPath string // Empty disables the metrics endpoint
}

type Server struct {
	bridge  ports.BridgePort
	opts    Options
	logger  Logger
	metrics *metrics.Metrics
}

func NewServer(bridge ports.BridgePort, opts Options) *Server {
	return &Server{
		bridge: bridge,
		opts:   opts,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetMetrics enables request counting and the metrics endpoint.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Handler returns the Hue API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(s.metrics.Middleware)

	r.Get("/description.xml", s.handleDescription)
	if s.metrics != nil && s.opts.MetricsPath != "" {
		r.Method(http.MethodGet, s.opts.MetricsPath, s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.NotFound(s.handleNotFound)
		r.MethodNotAllowed(s.handleMethodNotAllowed)
		r.Post("/", s.handleRegister)
		r.Get("/config", s.handlePublicConfig)
		r.Route("/{user}", func(r chi.Router) {
			r.Use(s.noteUnpaired)
			r.Get("/", s.handleFullState)
			r.Get("/config", s.handleConfig)
			r.Get("/groups", s.handleGroups)
			r.Get("/lights", s.handleGetLights)
			r.Get("/lights/{id}", s.handleGetLight)
			r.Put("/lights/{id}/state", s.handleSetLightState)
		})
	})
	return r
}

// Serve answers requests on ln until ctx is done, then lets in-flight
// requests finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("hue api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	s.logger.Info("hue api stopped")
	return err
}

// noteUnpaired logs requests made with a username no pairing issued. They
// are served all the same.
func (s *Server) noteUnpaired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := chi.URLParam(r, "user"); !s.bridge.Identity().KnowsUsername(user) {
			s.logger.Debug("request from unpaired username", "username", user, "path", r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
