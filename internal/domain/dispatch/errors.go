package dispatch

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/bridge"
	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// WireError is a WebDriver error as it appears on the wire
type WireError struct {
	HTTPStatus int
	// Status is the legacy JSON wire protocol code
	Status int
	// Code is the W3C error string
	Code string
}

var (
	WireUnknownCommand  = WireError{http.StatusNotFound, 9, "unknown command"}
	WireInvalidSession  = WireError{http.StatusNotFound, 6, "invalid session id"}
	WireInvalidArgument = WireError{http.StatusBadRequest, 61, "invalid argument"}
	WireJavaScriptError = WireError{http.StatusInternalServerError, 17, "javascript error"}
	WireTimeout         = WireError{http.StatusInternalServerError, 21, "timeout"}
	WireUnknownError    = WireError{http.StatusInternalServerError, 13, "unknown error"}
)

// Translate maps an error from the dispatch chain to its wire error
func Translate(err error) WireError {
	switch {
	case errors.Is(err, endpoint.ErrNotFound):
		return WireUnknownCommand
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, bridge.ErrSessionClosed):
		return WireInvalidSession
	case errors.Is(err, endpoint.ErrInvalidArgument),
		errors.Is(err, endpoint.ErrNoSession):
		return WireInvalidArgument
	case errors.Is(err, bridge.ErrScript):
		return WireJavaScriptError
	case errors.Is(err, bridge.ErrTimeout):
		return WireTimeout
	default:
		return WireUnknownError
	}
}

// Errors writes the last error recorded on the context as a protocol
// payload. Responses already written by the serializer are left alone.
func (d *Dispatcher) Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		err := last.Err
		wire := Translate(err)

		fields := []zap.Field{
			zap.String("code", wire.Code),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		}
		var herr *endpoint.HandlerError
		if errors.As(err, &herr) {
			fields = append(fields, zap.String("command", herr.Command), zap.String("cmd_id", herr.ID))
		}
		if wire.HTTPStatus >= http.StatusInternalServerError {
			d.logger.Error("command failed", fields...)
		} else {
			d.logger.Debug("command rejected", fields...)
		}

		payload := types.Payload{
			Status: wire.Status,
			Value: types.ErrorValue{
				Error:   wire.Code,
				Message: err.Error(),
			},
		}
		if sess, ok := CurrentSession(c); ok {
			payload.SessionID = sess.ID
		}
		c.JSON(wire.HTTPStatus, payload)
	}
}
