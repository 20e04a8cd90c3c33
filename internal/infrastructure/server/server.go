package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/webdriverify/internal/api/http"
	"github.com/GriffinCanCode/webdriverify/internal/api/middleware"
	"github.com/GriffinCanCode/webdriverify/internal/api/proxy"
	"github.com/GriffinCanCode/webdriverify/internal/api/transport"
	"github.com/GriffinCanCode/webdriverify/internal/domain/bridge"
	"github.com/GriffinCanCode/webdriverify/internal/domain/dispatch"
	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/endpoints"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/config"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/webdriverify/internal/launcher"
)

// Options carries collaborators that do not come from configuration
type Options struct {
	// Logger overrides the logger built from config
	Logger  *logging.Logger
	Version string
}

// Server wraps the HTTP server and dependencies
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	sessions   *session.Store
	bridge     *bridge.Bridge
	registry   *endpoint.Registry
	dispatcher *dispatch.Dispatcher
	proxy      *proxy.Proxy
	launcher   *launcher.Launcher
	router     *gin.Engine
	selfHosts  []string

	httpServer *http.Server
	detach     func()
	stop       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// NewServer creates a server with a logger built from cfg
func NewServer(cfg *config.Config, version string) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return New(cfg, Options{Logger: logger, Version: version})
}

// New creates a new server instance
func New(cfg *config.Config, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	base := cfg.Server.BaseURL()
	prefix := cfg.Proxy.Prefix
	logger.Info("Initializing web-driverify",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("public_url", base),
		zap.String("prefix", prefix),
		zap.Bool("forward", cfg.Proxy.ForwardEnabled),
	)

	metrics := monitoring.NewMetrics()

	sessions := session.NewStore(cfg.Session.OutboxSize)
	b := bridge.New(bridge.Config{
		Timeout:  cfg.Bridge.Timeout,
		PollWait: cfg.Bridge.PollWait,
	}, logger).WithMetrics(metrics)

	launch := launcher.New(launcher.Config{
		Command: cfg.Browser.Command,
		Args:    cfg.Browser.Args,
		Base:    base + prefix,
	}, logger)

	sessions.OnClose(b.Release)
	sessions.OnClose(func(sess *session.Session) {
		launch.Stop(sess.ID)
		metrics.SetSessionsActive(sessions.Len())
	})

	events := endpoint.NewNotifier(logger)
	registry := endpoint.NewRegistry(events)
	if err := endpoints.RegisterAll(registry, endpoints.Deps{
		Sessions: sessions,
		Bridge:   b,
		Logger:   logger,
		Version:  opts.Version,
	}); err != nil {
		return nil, err
	}
	registry.Seal()

	unsubscribe := events.Subscribe(func(e endpoint.Endpoint) {
		metrics.RecordEndpointInstance(e.Name())
	})
	detach := func() { unsubscribe() }
	if launch.Enabled() {
		logger.Info("Browser launcher enabled", zap.String("command", cfg.Browser.Command))
		unlaunch := launch.Attach(events)
		detach = func() {
			unsubscribe()
			unlaunch()
		}
	}

	breakers := resilience.NewHosts(resilience.DefaultSettings())
	var fwd *proxy.Proxy
	if cfg.Proxy.ForwardEnabled {
		fwd = proxy.New(proxy.Config{
			ScriptURL: base + prefix + "/assets/wd.js",
			Inject:    cfg.Proxy.InjectRuntime,
			Breakers:  breakers,
			Logger:    logger,
			Metrics:   metrics,
		})
	}

	d := dispatch.New(registry, sessions, logger).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.BodyLimit(cfg.Server.BodyLimit()))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}
	router.Use(d.Errors())

	handlers := apihttp.NewHandlers(apihttp.Options{
		Sessions: sessions,
		Registry: registry,
		Breakers: breakers,
		Metrics:  metrics,
		Logger:   logger,
		Base:     base + prefix,
		Version:  opts.Version,
	})
	prefixed := router.Group(prefix)
	handlers.Register(router, prefixed)
	transport.NewHandler(sessions, b, logger, metrics).Register(prefixed)

	// WebDriver commands, on root for W3C clients and under the prefix for
	// clients configured with it as their path
	d.Mount(router)
	d.Mount(prefixed)
	router.NoRoute(d.NoRoute())

	logger.Info("Server initialized successfully",
		zap.Int("commands", len(registry.Descriptors())),
	)

	srv := &Server{
		config:     cfg,
		logger:     logger,
		metrics:    metrics,
		sessions:   sessions,
		bridge:     b,
		registry:   registry,
		dispatcher: d,
		proxy:      fwd,
		launcher:   launch,
		router:     router,
		selfHosts:  selfHosts(cfg.Server),
		detach:     detach,
		stop:       make(chan struct{}),
	}
	srv.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, nil
}

// selfHosts are the host[:port] forms under which the proxy addresses
// itself; absolute-URI requests naming them are API calls, not forwards
func selfHosts(s config.ServerConfig) []string {
	hosts := []string{
		net.JoinHostPort("localhost", s.Port),
		net.JoinHostPort("127.0.0.1", s.Port),
		net.JoinHostPort("::1", s.Port),
	}
	if s.Host != "" && s.Host != "0.0.0.0" && s.Host != "::" {
		hosts = append(hosts, net.JoinHostPort(s.Host, s.Port))
	}
	if u, err := url.Parse(s.BaseURL()); err == nil && u.Host != "" {
		hosts = append(hosts, u.Host)
	}
	return hosts
}

// ServeHTTP routes forward-proxy traffic to the proxy and everything else
// to the API router
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.proxy != nil && proxy.IsProxyRequest(r, s.selfHosts...) {
		s.proxy.ServeHTTP(w, r)
		return
	}
	s.router.ServeHTTP(w, r)
}

// Sessions exposes the session store
func (s *Server) Sessions() *session.Store {
	return s.sessions
}

// Run starts the reaper and the HTTP server. It returns nil once Shutdown
// stops the listener.
func (s *Server) Run() error {
	s.startReaper()

	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) startReaper() {
	interval := s.config.Session.ReapInterval
	if interval <= 0 || s.config.Session.IdleTimeout <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.reap()
			case <-s.stop:
				return
			}
		}
	}()
}

// reap destroys sessions idle for longer than the configured timeout
func (s *Server) reap() []string {
	ids := s.sessions.Reap(s.config.Session.IdleTimeout)
	if len(ids) > 0 {
		s.metrics.AddSessionsReaped(len(ids))
		s.logger.Info("Reaped idle sessions",
			zap.Strings("sessions", ids),
			zap.Duration("idle_timeout", s.config.Session.IdleTimeout),
		)
	}
	s.metrics.SetSessionsActive(s.sessions.Len())
	return ids
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		close(s.stop)
		s.wg.Wait()
		s.detach()
		s.registry.Events().Close()

		s.launcher.Close()
		s.sessions.Close()

		_ = s.logger.Sync()
	})
	return nil
}
