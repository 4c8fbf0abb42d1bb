// Package dispatcher serves the application over HTTP. Requests to /<controller>/<action>
// are routed into core.CallAction and the action result is rendered as the response.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/core/container"
	"github.com/helixframework/helix/internal/debug"
	"github.com/helixframework/helix/internal/infrastructure/config"
	"github.com/helixframework/helix/internal/infrastructure/logger"
	"github.com/helixframework/helix/internal/interfaces/http/dto"
	"github.com/helixframework/helix/internal/interfaces/http/middleware"
	"github.com/helixframework/helix/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// Dispatcher is the HTTP dispatcher of the core
type Dispatcher struct {
	core   *core.Core
	cfg    config.HTTPConfig
	engine *gin.Engine
	logger *zap.Logger
	stderr io.Writer

	middleware []gin.HandlerFunc
	registrars []router.RouteRegistrar
	listener   net.Listener
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithRoutes registers extra routes next to the default controller route
func WithRoutes(registrars ...router.RouteRegistrar) Option {
	return func(d *Dispatcher) {
		d.registrars = append(d.registrars, registrars...)
	}
}

// WithMiddleware appends global middleware after the built-in chain
func WithMiddleware(handlers ...gin.HandlerFunc) Option {
	return func(d *Dispatcher) {
		d.middleware = append(d.middleware, handlers...)
	}
}

// WithListener serves on ln instead of listening on the configured host and port
func WithListener(ln net.Listener) Option {
	return func(d *Dispatcher) {
		d.listener = ln
	}
}

// WithStderr sets where snapshots outside of requests are written
func WithStderr(w io.Writer) Option {
	return func(d *Dispatcher) {
		d.stderr = w
	}
}

// New creates the dispatcher and its gin engine
func New(c *core.Core, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		core:   c,
		cfg:    c.Settings().HTTP,
		logger: logger.Component(c.Logger(), "http"),
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(d)
	}

	if c.IsProduction() && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(d.cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("http: trusted proxies: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = d.cfg.CORSAllowOrigins
	if len(d.cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = d.cfg.CORSAllowMethods
	}
	if len(d.cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = d.cfg.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(d.logger),
		logger.Recovery(d.logger, d.recovered),
		middleware.CORS(cors),
	)

	tp, err := c.Telemetry()
	if err != nil {
		return nil, err
	}
	if tp.IsEnabled() {
		engine.Use(middleware.Tracing(middleware.TracingConfig{ServiceName: tp.ServiceName(), Enabled: true})...)
	}
	if d.cfg.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(d.cfg.MaxBodyBytes))
	}
	engine.Use(d.middleware...)

	engine.NoRoute(func(c *gin.Context) { d.renderError(c, dto.NotFound()) })
	d.engine = engine

	d.Register(d.registrars...)
	if d.cfg.DefaultRoute {
		engine.Any("/:controller", d.handle)
		engine.Any("/:controller/*path", d.handle)
	}
	return d, nil
}

// Register adds routes to the engine
func (d *Dispatcher) Register(registrars ...router.RouteRegistrar) {
	router.NewRouter(d.engine).Register(registrars...).Setup()
}

// Engine returns the gin engine
func (d *Dispatcher) Engine() *gin.Engine {
	return d.engine
}

// Handler returns the request handler, e.g. for httptest
func (d *Dispatcher) Handler() http.Handler {
	return d.engine
}

// Addr returns the address the server listens on
func (d *Dispatcher) Addr() string {
	if d.listener != nil {
		return d.listener.Addr().String()
	}
	return net.JoinHostPort(d.cfg.Host, d.cfg.Port)
}

// Start serves HTTP until ctx is cancelled, then shuts the server down gracefully
// within the configured shutdown timeout
func (d *Dispatcher) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:           d.Addr(),
		Handler:        d.engine,
		ReadTimeout:    d.cfg.ReadTimeout,
		WriteTimeout:   d.cfg.WriteTimeout,
		IdleTimeout:    d.cfg.IdleTimeout,
		MaxHeaderBytes: d.cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("Server starting", zap.String("addr", srv.Addr))
		if d.listener != nil {
			errCh <- srv.Serve(d.listener)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	d.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http: server forced to shutdown: %w", err)
	}
	<-errCh

	d.logger.Info("Server exited gracefully")
	return nil
}

// HandleSnapshot writes snapshots raised outside of a request. Stack traces are
// omitted in production.
func (d *Dispatcher) HandleSnapshot(s *debug.Snapshot) {
	text := s.Render()
	if d.core.IsProduction() {
		text = fmt.Sprintf("[%s] %s\nsnapshot: %s\n", s.Type, s.Message, s.ID)
	}
	if _, err := io.WriteString(d.stderr, text); err != nil {
		d.logger.Warn("unable to write snapshot", zap.String("snapshot", s.ID), zap.Error(err))
	}
}

// Bootloader binds a dispatcher created with opts as the core HTTP dispatcher
func Bootloader(opts ...Option) core.Bootloader {
	return func(c *core.Core) error {
		c.Container().Singleton(core.HTTPDispatcherBinding, func(*container.Container, container.Params) (any, error) {
			d, err := New(c, opts...)
			if err != nil {
				return nil, err
			}
			return d, nil
		})
		return nil
	}
}
