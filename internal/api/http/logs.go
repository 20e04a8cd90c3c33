package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
)

// BrowserLogEntry is a console message forwarded by the runtime
type BrowserLogEntry struct {
	Message string                 `json:"message"`
	SID     string                 `json:"sid"`
	Context map[string]interface{} `json:"context"`
}

// Log writes a browser console message to the server log at the level
// named in the path
func (h *Handlers) Log(c *gin.Context) {
	level, err := logging.ParseLevel(c.Param("level"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown log level"})
		return
	}
	// pages must not be able to panic or exit the process
	if level > zapcore.ErrorLevel {
		level = zapcore.ErrorLevel
	}

	var entry BrowserLogEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log entry"})
		return
	}

	ce := h.browser.Check(level, h.policy.Sanitize(entry.Message))
	if ce == nil {
		c.Status(http.StatusNoContent)
		return
	}

	fields := make([]zap.Field, 0, len(entry.Context)+1)
	if entry.SID != "" {
		fields = append(fields, zap.String("sid", entry.SID))
	}
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, h.policy.Sanitize(v)))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}
	ce.Write(fields...)
	c.Status(http.StatusNoContent)
}
