package endpoints

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/bridge"
	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// send runs the instance's command in the page and waits for the result
func send(req *endpoint.Request, b *bridge.Bridge, args map[string]interface{}) (types.Reply, error) {
	sess, err := req.RequireSession()
	if err != nil {
		return types.Reply{}, err
	}
	cmd := req.Endpoint.DTO()
	if args != nil {
		cmd = cmd.WithArgs(args)
	}
	return b.Send(req.Context.Request.Context(), sess, cmd)
}

// Screenshot captures the rendered page as a base64 PNG
type Screenshot struct {
	endpoint.Base
	deps *Deps
}

func (s *Screenshot) Bind(r endpoint.Router) {
	r.GET("/session/:sid/screenshot", func(req *endpoint.Request) error {
		reply, err := send(req, s.deps.Bridge, nil)
		if err != nil {
			return err
		}

		data, ok := reply.Result.(string)
		if !ok {
			return fmt.Errorf("%w: result is %T", bridge.ErrInvalidImage, reply.Result)
		}
		bare, raw, mime, err := bridge.DecodeImage(data)
		if err != nil {
			return err
		}

		req.Logger().Debug("screenshot captured",
			zap.String("mime", mime),
			zap.Int("bytes", len(raw)),
		)
		req.Respond(bare)
		req.Next()
		return nil
	})
}

// Title reads document.title
type Title struct {
	endpoint.Base
	deps *Deps
}

func (t *Title) Bind(r endpoint.Router) {
	r.GET("/session/:sid/title", func(req *endpoint.Request) error {
		reply, err := send(req, t.deps.Bridge, nil)
		if err != nil {
			return err
		}
		req.Respond(reply.Result)
		req.Next()
		return nil
	})
}

// Execute evaluates a script body in the page. The body is compiled here
// first so syntax errors never reach the browser.
type Execute struct {
	endpoint.Base
	deps *Deps
}

func (e *Execute) Bind(r endpoint.Router) {
	h := func(req *endpoint.Request) error {
		var body types.ExecuteRequest
		if err := req.Bind(&body); err != nil {
			return err
		}
		if err := CheckScript(body.Script); err != nil {
			return err
		}

		args := body.Args
		if args == nil {
			args = []interface{}{}
		}
		reply, err := send(req, e.deps.Bridge, map[string]interface{}{
			"script": body.Script,
			"args":   args,
		})
		if err != nil {
			return err
		}
		req.Respond(reply.Result)
		req.Next()
		return nil
	}
	r.POST("/session/:sid/execute", h)
	r.POST("/session/:sid/execute/sync", h)
}

// CheckScript compiles a WebDriver script body the way the page will wrap it
func CheckScript(script string) error {
	src := "(function(){" + script + "\n})"
	if _, err := goja.Compile("execute", src, false); err != nil {
		return fmt.Errorf("%w: %v", bridge.ErrScript, err)
	}
	return nil
}
