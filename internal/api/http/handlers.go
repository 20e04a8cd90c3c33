package http

import (
	"html/template"
	"net/http"
	"runtime"

	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/resilience"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Options configures a handler set
type Options struct {
	Sessions *session.Store
	Registry *endpoint.Registry
	Breakers *resilience.Hosts
	Metrics  *monitoring.Metrics
	Logger   *logging.Logger
	// Base is the absolute URL of the prefix group, e.g.
	// http://localhost:4444/web-driverify
	Base    string
	Version string
}

// Handlers contains the proxy's own HTTP handlers
type Handlers struct {
	sessions *session.Store
	registry *endpoint.Registry
	breakers *resilience.Hosts
	metrics  *monitoring.Metrics
	logger   *logging.Logger
	browser  *logging.Logger
	policy   *bluemonday.Policy
	pages    *template.Template
	base     string
	version  string
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handlers{
		sessions: opts.Sessions,
		registry: opts.Registry,
		breakers: opts.Breakers,
		metrics:  opts.Metrics,
		logger:   logger.Named("http"),
		browser:  logger.Named("browser"),
		policy:   bluemonday.StrictPolicy(),
		pages:    parsePages(),
		base:     opts.Base,
		version:  opts.Version,
	}
}

// Register mounts the handlers. Health and metrics live on root, the init
// page, runtime assets and log sink live on the prefix group.
func (h *Handlers) Register(root, prefixed gin.IRoutes) {
	root.GET("/", h.Root)
	root.GET("/health", h.Health)
	if h.metrics != nil {
		root.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	prefixed.GET("/wd", h.Init)
	prefixed.StaticFS("/assets", http.FS(Assets()))
	prefixed.POST("/log/:level", h.Log)
}

// Root handles the bare liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "web-driverify",
		"version": h.version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"sessions": h.sessions.Len(),
		"runtime": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"go":         runtime.Version(),
		},
	}
	if h.registry != nil {
		body["endpoints"] = h.registry.Stats()
	}
	if h.breakers != nil {
		body["upstreams"] = h.breakers.States()
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, body)
}

type initPage struct {
	SessionID  string
	WindowName string
	Command    string
	Base       string
}

// Init renders the page a launched browser opens first. It stores the
// session ID in window.name, which survives navigation to proxied origins,
// and loads the runtime.
func (h *Handlers) Init(c *gin.Context) {
	sid := c.Query("sid")
	if sid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sid query parameter is required"})
		return
	}
	cmd := c.Query("cmd")

	fields := []zap.Field{zap.String("sid", sid), zap.String("cmd", cmd)}
	if _, err := h.sessions.Get(sid); err != nil {
		// The launcher can start the browser before the creating command
		// has stored the session; the runtime keeps polling until it appears.
		h.logger.Debug("init page requested ahead of session", fields...)
	} else {
		h.logger.Info("browser attached", fields...)
	}

	c.Header("Cache-Control", "no-store")
	c.Render(http.StatusOK, render.HTML{
		Template: h.pages,
		Name:     "wd.html",
		Data: initPage{
			SessionID:  sid,
			WindowName: "wd:" + sid,
			Command:    cmd,
			Base:       h.base,
		},
	})
}
