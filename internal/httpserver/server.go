package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-metrics-stream/internal/config"
)

// Server exposes the websocket streams, the inspection and event history API, health probes and
// Prometheus metrics.
type Server struct {
	logger    zerolog.Logger
	cfg       *config.HTTPConfig
	registry  workloadRegistry
	collector batchCollector
	events    eventHistory
	hub       subscriber

	router     chi.Router
	server     *http.Server
	ready      atomic.Bool
	inShutdown atomic.Bool

	// Cancelled on shutdown so that hijacked websocket connections end too.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

func New(logger zerolog.Logger, cfg *config.HTTPConfig, registry workloadRegistry, collector batchCollector, events eventHistory, hub subscriber) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:     logger.With().Str("component", "http_server").Logger(),
		cfg:        cfg,
		registry:   registry,
		collector:  collector,
		events:     events,
		hub:        hub,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/-/healthz", s.handleHealthz)
	router.Get("/-/readyz", s.handleReadyz)
	router.Get("/-/status", s.handleStatus)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/workloads", s.handleWorkloads)
		r.Post("/collect", s.handleCollect)
		r.Post("/refresh", s.handleRefresh)

		r.Get("/events", s.handleEventsForApp)
		r.Get("/events/all", s.handleAllEvents)
		r.Get("/events/mostRecent", s.handleMostRecentEvent)
	})

	router.Get("/ws/metrics", s.handleMetricsStream)
	router.Get("/ws/events", s.handleEventsStream)

	return router
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady flips the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start listens on the configured address and serves in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.Info().Msg("HTTP server is shutting down, skipping start")
		return nil
	}

	s.server = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	lc := &net.ListenConfig{
		KeepAliveConfig: net.KeepAliveConfig{
			Enable: true,
		},
	}
	listener, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", s.cfg.ListenAddr, err)
	}
	s.logger.Info().Msgf("HTTP server listening on %s", listener.Addr())

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Shutdown stops accepting requests, closes open streams and waits for handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.ready.Store(false)
	s.cancelBase()

	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info().Msg("HTTP server closed")
	return nil
}

func (s *Server) writeTimeout() time.Duration {
	if s.cfg.WriteTimeout > 0 {
		return s.cfg.WriteTimeout
	}
	return defaultWriteTimeout
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}
