package endpoint

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// Hooks lets the dispatcher observe what a handler does to the session
type Hooks struct {
	Logger *logging.Logger
	// Staged runs after a confirmation is staged; overwritten is true when it
	// replaced one that was never collected
	Staged func(cmd types.Command, overwritten bool)
}

// Request is the per-request handle passed to an endpoint handler
type Request struct {
	Context  *gin.Context
	Endpoint Endpoint
	// Session is nil on routes without a :sid segment
	Session *session.Session

	hooks     Hooks
	next      func()
	continued bool
	value     interface{}
}

// NewRequest binds an endpoint instance to the current exchange. next is the
// continuation into the protocol serializer.
func NewRequest(c *gin.Context, e Endpoint, sess *session.Session, next func(), hooks Hooks) *Request {
	if hooks.Logger == nil {
		hooks.Logger = logging.Nop()
	}
	return &Request{
		Context:  c,
		Endpoint: e,
		Session:  sess,
		hooks:    hooks,
		next:     next,
	}
}

// Next passes control to the serializer. Calling it more than once is a no-op.
func (r *Request) Next() {
	if r.continued {
		return
	}
	r.continued = true
	if r.next != nil {
		r.next()
	}
}

// Continued reports whether Next was called
func (r *Request) Continued() bool {
	return r.continued
}

// Respond sets the value the serializer will return to the client
func (r *Request) Respond(v interface{}) {
	r.value = v
}

// Value returns what the handler responded with
func (r *Request) Value() interface{} {
	return r.value
}

// Logger returns a logger scoped to this command instance
func (r *Request) Logger() *logging.Logger {
	return r.hooks.Logger.With(
		zap.String("command", r.Endpoint.Name()),
		zap.String("cmd_id", r.Endpoint.ID()),
	)
}

// Bind decodes the JSON body into v
func (r *Request) Bind(v interface{}) error {
	if err := r.Context.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// RequireSession returns the session or ErrNoSession
func (r *Request) RequireSession() (*session.Session, error) {
	if r.Session == nil {
		return nil, ErrNoSession
	}
	return r.Session, nil
}

// Stage puts this instance's DTO into the session's confirmation mailbox
// with a human-readable status. A confirmation that was never collected is
// overwritten and reported as a warning, not an error.
func (r *Request) Stage(status string) error {
	sess, err := r.RequireSession()
	if err != nil {
		return err
	}

	cmd := r.Endpoint.DTO()
	err = sess.Stage(r.Endpoint, types.Confirmation{Cmd: cmd, Data: status})
	overwritten := errors.Is(err, session.ErrProtocolViolation)
	if err != nil && !overwritten {
		return err
	}
	if overwritten {
		r.Logger().Warn("protocol violation: confirmation overwritten",
			zap.String("session", sess.ID),
			zap.Error(err),
		)
	}
	if r.hooks.Staged != nil {
		r.hooks.Staged(cmd, overwritten)
	}
	return nil
}
