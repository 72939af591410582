// Package health serves the liveness probe and the metrics endpoint.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/mailbot/core/logger"
)

const (
	// DefaultListen binds every interface, as platform health checks expect.
	DefaultListen = "0.0.0.0"
	// DefaultPort is used when neither the config nor PORT sets one.
	DefaultPort = 5000

	aliveText = "Bot is running!"
	component = "http"
)

// Config holds the listener settings.
type Config struct {
	Enabled *bool  `yaml:"enabled" envconfig:"HEALTH_ENABLED"`
	Listen  string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
	Port    int    `yaml:"port" envconfig:"PORT"`
}

// Normalize fills defaults and validates the port.
func (c *Config) Normalize() error {
	if c.Enabled == nil {
		on := true
		c.Enabled = &on
	}
	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("health.port out of range: %d", c.Port)
	}
	return nil
}

// On reports whether the listener should run.
func (c Config) On() bool { return c.Enabled == nil || *c.Enabled }

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Listen, fmt.Sprint(c.Port))
}

// NewRouter builds the HTTP routes. metrics may be nil.
func NewRouter(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	r.Get("/", alive)
	r.Head("/", alive)
	r.Get("/healthz", alive)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

func alive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(aliveText))
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug(r.Context(), component, "http.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("code", ww.Status()),
			slog.Duration("took", logger.RoundMS(logger.Took(start))),
		)
	})
}

// Server runs the router on its own listener.
type Server struct {
	srv *http.Server

	mu   sync.Mutex
	ln   net.Listener
	done chan error
}

// NewServer prepares a server for cfg.Addr().
func NewServer(cfg Config, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return errors.New("health server already started")
	}
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	s.done = make(chan error, 1)
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			logger.Error(ctx, component, "http.serve", slog.String("err", err.Error()))
		}
		s.done <- err
	}()
	logger.Info(ctx, component, "http.listen", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, useful when the port was 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting connections and waits for the serve loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.ln != nil
	done := s.done
	s.mu.Unlock()
	if !started {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	select {
	case serveErr := <-done:
		return errors.Join(err, serveErr)
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
}
