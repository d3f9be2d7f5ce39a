package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kraken-agui/pkg/app"
	"github.com/go-go-golems/kraken-agui/pkg/events"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

// Server exposes the assistant over HTTP: the streaming run endpoint, tool
// discovery and direct invocation, health and metrics.
type Server struct {
	app      *app.App
	metrics  *Metrics
	sinks    []events.EventSink
	executor *tools.Executor
	router   *gin.Engine
}

type Option func(*Server)

// WithMetrics uses m instead of a fresh set of collectors. Pass the same
// Metrics whose observers were given to app.Build.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithEventSinks mirrors every protocol event of every run to sinks.
func WithEventSinks(sinks ...events.EventSink) Option {
	return func(s *Server) { s.sinks = append(s.sinks, sinks...) }
}

func New(a *app.App, options ...Option) *Server {
	ret := &Server{app: a}
	for _, o := range options {
		o(ret)
	}
	if ret.metrics == nil {
		ret.metrics = NewMetrics()
	}
	ret.executor = tools.NewExecutor(a.Settings.Tools, tools.WithObserver(ret.metrics.ObserveTool))
	ret.router = ret.routes()
	return ret
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(), CORSMiddleware(s.app.Settings.Server.CORSOrigins))

	r.POST("/awp", s.handleRun)
	r.POST("/agent", s.handleRun)

	r.GET("/api/tools", s.handleListTools)
	r.POST("/api/tool/:name", s.handleCallTool)

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, giving in-flight runs a few seconds to finish their streams.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "could not shut down cleanly")
	}
	return nil
}
