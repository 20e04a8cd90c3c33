package dispatch

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// serialize writes the protocol payload for req
func (d *Dispatcher) serialize(c *gin.Context, req *endpoint.Request) {
	payload := types.Payload{
		Status: types.StatusSuccess,
		Value:  req.Value(),
	}
	if req.Session != nil {
		payload.SessionID = req.Session.ID
		payload = d.collect(payload, req.Session, req.Endpoint)
	}
	c.JSON(http.StatusOK, payload)
}

// collect hands a confirmation staged by another instance to its owner's
// Transform and attaches it when the mailbox ends up cleared. An owner
// without a Transform hook has its confirmation collected on the next pass.
func (d *Dispatcher) collect(payload types.Payload, sess *session.Session, current endpoint.Endpoint) types.Payload {
	conf, owner, ok := sess.Pending()
	if !ok || owner == current {
		return payload
	}

	if t, ok := owner.(endpoint.Transformer); ok {
		payload = t.Transform(payload, sess)
		if sess.State() == session.StateAwaiting {
			if _, o, _ := sess.Pending(); o == owner {
				return payload
			}
		}
	} else {
		sess.Clear()
	}

	payload.Confirm = &conf
	d.logger.Debug("confirmation collected",
		zap.String("session", sess.ID),
		zap.String("command", conf.Cmd.Name),
		zap.String("cmd_id", conf.Cmd.ID),
		zap.String("by", current.Name()),
	)
	if d.metrics != nil {
		d.metrics.RecordConfirmation(conf.Cmd.Name, "collected")
	}
	return payload
}
