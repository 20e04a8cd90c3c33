package endpoints

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// navigation is shared by commands that unload the current page. The
// browser cannot answer them, so they are pushed without waiting and
// acknowledged through the session's confirmation on the next request.
type navigation struct {
	endpoint.Base
	deps *Deps
}

func (n *navigation) handle(args func(req *endpoint.Request) (map[string]interface{}, error)) endpoint.HandlerFunc {
	return func(req *endpoint.Request) error {
		sess, err := req.RequireSession()
		if err != nil {
			return err
		}

		cmd := req.Endpoint.DTO()
		if args != nil {
			a, err := args(req)
			if err != nil {
				return err
			}
			cmd = cmd.WithArgs(a)
		}

		if err := n.deps.Bridge.Push(sess, cmd); err != nil {
			return err
		}
		if err := req.Stage(strings.ToLower(cmd.Name) + " complete"); err != nil {
			return err
		}
		req.Next()
		return nil
	}
}

// Transform collects the confirmation once the browser is back
func (n *navigation) Transform(data types.Payload, sess *session.Session) types.Payload {
	n.deps.logger(n.Name()).Debug("client loaded, clearing confirmation",
		zap.String("session", sess.ID),
		zap.String("cmd_id", n.ID()),
	)
	sess.Clear()
	return data
}

// Forward moves forward in the browser history
type Forward struct{ navigation }

func (f *Forward) Bind(r endpoint.Router) {
	r.POST("/session/:sid/forward", f.handle(nil))
}

// Back moves back in the browser history
type Back struct{ navigation }

func (b *Back) Bind(r endpoint.Router) {
	r.POST("/session/:sid/back", b.handle(nil))
}

// Refresh reloads the current page
type Refresh struct{ navigation }

func (rf *Refresh) Bind(r endpoint.Router) {
	r.POST("/session/:sid/refresh", rf.handle(nil))
}

// Navigate loads a URL
type Navigate struct{ navigation }

func (n *Navigate) Bind(r endpoint.Router) {
	r.POST("/session/:sid/url", n.handle(func(req *endpoint.Request) (map[string]interface{}, error) {
		var body types.NavigateRequest
		if err := req.Bind(&body); err != nil {
			return nil, err
		}
		u, err := url.Parse(body.URL)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("%w: url %q is not absolute", endpoint.ErrInvalidArgument, body.URL)
		}
		return map[string]interface{}{"url": u.String()}, nil
	}))
}
