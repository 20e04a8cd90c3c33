package endpoints

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/shared/id"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// SessionCreator is implemented by instances that open a session. The ID is
// chosen when the instance is created, so created-event listeners can start
// a browser for it before the handler runs.
type SessionCreator interface {
	SessionID() string
}

// NewSession opens a session
type NewSession struct {
	endpoint.Base
	deps *Deps
	sid  string
}

// NewNewSession creates an instance with a fresh session ID
func NewNewSession(d *Deps) *NewSession {
	return &NewSession{deps: d, sid: id.NewSessionID().String()}
}

// SessionID returns the ID the session will be created with
func (n *NewSession) SessionID() string {
	return n.sid
}

func (n *NewSession) Bind(r endpoint.Router) {
	r.POST("/session", func(req *endpoint.Request) error {
		self := req.Endpoint.(*NewSession)

		var body types.NewSessionRequest
		if req.Context.Request.ContentLength != 0 {
			if err := req.Bind(&body); err != nil {
				return err
			}
		}

		caps := body.Merged()
		sess := self.deps.Sessions.CreateWithID(self.sid, caps)
		req.Session = sess

		self.deps.logger("NewSession").Info("session created",
			zap.String("session", sess.ID),
			zap.String("cmd_id", self.ID()),
		)

		req.Respond(map[string]interface{}{
			"sessionId":    sess.ID,
			"capabilities": caps,
		})
		req.Next()
		return nil
	})
}

// DeleteSession tears a session down, failing any call waiting on it
type DeleteSession struct {
	endpoint.Base
	deps *Deps
}

func (d *DeleteSession) Bind(r endpoint.Router) {
	r.DELETE("/session/:sid", func(req *endpoint.Request) error {
		self := req.Endpoint.(*DeleteSession)
		sess, err := req.RequireSession()
		if err != nil {
			return err
		}
		if err := self.deps.Sessions.Destroy(sess.ID); err != nil {
			return err
		}
		self.deps.logger("DeleteSession").Info("session deleted", zap.String("session", sess.ID))
		req.Next()
		return nil
	})
}

// Status reports readiness
type Status struct {
	endpoint.Base
	deps *Deps
}

func (s *Status) Bind(r endpoint.Router) {
	r.GET("/status", func(req *endpoint.Request) error {
		self := req.Endpoint.(*Status)
		req.Respond(map[string]interface{}{
			"ready":    true,
			"message":  "web-driverify proxy ready",
			"sessions": self.deps.Sessions.Len(),
			"build":    map[string]string{"version": self.deps.Version},
			"os":       map[string]string{"name": runtime.GOOS, "arch": runtime.GOARCH},
		})
		req.Next()
		return nil
	})
}
