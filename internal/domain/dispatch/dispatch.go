package dispatch

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// Context keys set on the gin context during dispatch
const (
	EndpointKey = "wd.endpoint"
	SessionKey  = "wd.session"
)

// Dispatcher mounts endpoint routes and runs the per-request lifecycle
type Dispatcher struct {
	registry *endpoint.Registry
	sessions *session.Store
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// New creates a dispatcher over a populated registry
func New(registry *endpoint.Registry, sessions *session.Store, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		registry: registry,
		sessions: sessions,
		logger:   logger.Named("dispatch"),
	}
}

// WithMetrics attaches a metrics collector
func (d *Dispatcher) WithMetrics(m *monitoring.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Mount binds the routes of every registered endpoint onto group
func (d *Dispatcher) Mount(group gin.IRoutes) {
	for _, desc := range d.registry.Descriptors() {
		binder, ok := desc.Binder()
		if !ok {
			continue
		}
		binder.Bind(&router{d: d, name: desc.Name(), routes: group})
	}
}

// Handle resolves name and instantiates a fresh endpoint for the request.
// An unknown name aborts with endpoint.ErrNotFound before any session is
// looked up.
func (d *Dispatcher) Handle(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		desc, err := d.registry.Resolve(name)
		if err != nil {
			d.abort(c, err)
			return
		}
		e := desc.Instantiate()
		c.Set(EndpointKey, e)
		c.Next()
	}
}

// Session resolves the :sid path segment and refreshes the session's
// last-seen time
func (d *Dispatcher) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := d.sessions.Touch(c.Param("sid"))
		if err != nil {
			d.abort(c, err)
			return
		}
		c.Set(SessionKey, sess)
		c.Next()
	}
}

// NoRoute reports unmatched protocol paths as unknown commands
func (d *Dispatcher) NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		d.abort(c, fmt.Errorf("%w: %s %s", endpoint.ErrNotFound, c.Request.Method, c.Request.URL.Path))
	}
}

// Current returns the endpoint instance attached to c
func Current(c *gin.Context) (endpoint.Endpoint, bool) {
	v, ok := c.Get(EndpointKey)
	if !ok {
		return nil, false
	}
	e, ok := v.(endpoint.Endpoint)
	return e, ok
}

// CurrentSession returns the session resolved for c
func CurrentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok
}

func (d *Dispatcher) invoke(h endpoint.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := Current(c)
		if !ok {
			d.abort(c, fmt.Errorf("%w: no endpoint on route %s", endpoint.ErrNotFound, c.FullPath()))
			return
		}
		sess, _ := CurrentSession(c)

		var req *endpoint.Request
		req = endpoint.NewRequest(c, e, sess, func() { d.serialize(c, req) }, d.hooks())

		if err := d.run(h, req); err != nil {
			if c.Writer.Written() {
				req.Logger().Error("handler failed after response was written", zap.Error(err))
			}
			d.abort(c, err)
		}
	}
}

// run calls the handler and normalizes every failure to a HandlerError
func (d *Dispatcher) run(h endpoint.HandlerFunc, req *endpoint.Request) (err error) {
	e := req.Endpoint
	fail := func(cause error) error {
		return &endpoint.HandlerError{Command: e.Name(), ID: e.ID(), Err: cause}
	}

	defer func() {
		if r := recover(); r != nil {
			req.Logger().Error("handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := h(req); err != nil {
		return fail(err)
	}
	if !req.Continued() {
		return fail(endpoint.ErrNoContinuation)
	}
	return nil
}

func (d *Dispatcher) hooks() endpoint.Hooks {
	return endpoint.Hooks{
		Logger: d.logger,
		Staged: func(cmd types.Command, overwritten bool) {
			if d.metrics == nil {
				return
			}
			d.metrics.RecordConfirmation(cmd.Name, "staged")
			if overwritten {
				d.metrics.RecordConfirmation(cmd.Name, "overwritten")
			}
		},
	}
}

func (d *Dispatcher) abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// router adapts endpoint.Router onto a gin route group
type router struct {
	d      *Dispatcher
	name   string
	routes gin.IRoutes
}

func (r *router) Handle(method, path string, h endpoint.HandlerFunc) {
	chain := []gin.HandlerFunc{r.d.Handle(r.name)}
	if strings.Contains(path, ":sid") {
		chain = append(chain, r.d.Session())
	}
	chain = append(chain, r.d.invoke(h))

	r.routes.Handle(method, path, chain...)
	r.d.logger.Debug("route bound",
		zap.String("command", r.name),
		zap.String("method", method),
		zap.String("path", path),
	)
}

func (r *router) GET(path string, h endpoint.HandlerFunc) {
	r.Handle("GET", path, h)
}

func (r *router) POST(path string, h endpoint.HandlerFunc) {
	r.Handle("POST", path, h)
}

func (r *router) DELETE(path string, h endpoint.HandlerFunc) {
	r.Handle("DELETE", path, h)
}
