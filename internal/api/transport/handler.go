package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/bridge"
	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// pages of any origin host the runtime
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the browser side of the bridge
type Handler struct {
	sessions *session.Store
	bridge   *bridge.Bridge
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a transport handler
func NewHandler(sessions *session.Store, b *bridge.Bridge, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{
		sessions: sessions,
		bridge:   b,
		logger:   logger.Named("transport"),
		metrics:  metrics,
	}
}

// Register mounts the bridge routes on group
func (h *Handler) Register(group gin.IRoutes) {
	group.GET("/session/:sid/bridge", h.Poll)
	group.POST("/session/:sid/bridge", h.Reply)
	group.GET("/session/:sid/bridge/ws", h.Stream)
}

func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	sess, err := h.sessions.Get(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return sess, true
}

// Poll waits up to the poll window for the next command
func (h *Handler) Poll(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if h.metrics != nil {
		h.metrics.IncBridgeConnections("poll")
		defer h.metrics.DecBridgeConnections("poll")
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.bridge.Config().PollWait)
	defer cancel()

	cmd, err := h.bridge.Next(ctx, sess)
	switch {
	case err == nil:
		h.logger.Debug("command delivered",
			zap.String("session", sess.ID),
			zap.String("command", cmd.Name),
			zap.String("transport", "poll"),
		)
		c.JSON(http.StatusOK, cmd)
	case errors.Is(err, bridge.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		// poll window elapsed or the browser went away
		c.Status(http.StatusNoContent)
	}
}

// Reply accepts a command result from the browser
func (h *Handler) Reply(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var reply types.Reply
	if err := c.ShouldBindJSON(&reply); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.resolve(sess, reply, "poll"); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) resolve(sess *session.Session, reply types.Reply, transport string) error {
	if err := h.bridge.Resolve(sess, reply); err != nil {
		// pushed navigation and calls that already timed out land here
		h.logger.Debug("unmatched reply",
			zap.String("session", sess.ID),
			zap.String("command", reply.Command.Name),
			zap.String("cmd_id", reply.Command.ID),
			zap.String("transport", transport),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Stream upgrades to a WebSocket carrying commands down and replies up
func (h *Handler) Stream(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncBridgeConnections("ws")
		defer h.metrics.DecBridgeConnections("ws")
	}
	h.logger.Debug("runtime attached", zap.String("session", sess.ID))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go h.readLoop(ctx, cancel, conn, sess)
	h.writeLoop(ctx, conn, sess)

	h.logger.Debug("runtime detached", zap.String("session", sess.ID))
}

func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *session.Session) {
	defer cancel()

	conn.SetReadLimit(64 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var reply types.Reply
		if err := sonic.Unmarshal(data, &reply); err != nil {
			h.logger.Warn("malformed reply frame", zap.String("session", sess.ID), zap.Error(err))
			continue
		}
		_ = h.resolve(sess, reply, "ws")

		if ctx.Err() != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	commands := make(chan types.Command)
	go func() {
		defer close(commands)
		for {
			cmd, err := h.bridge.Next(ctx, sess)
			if err != nil {
				return
			}
			select {
			case commands <- cmd:
			case <-ctx.Done():
				// put it back for the next transport
				_ = sess.Enqueue(cmd)
				return
			}
		}
	}()

	for {
		select {
		case cmd, ok := <-commands:
			if !ok {
				h.close(conn, sess)
				return
			}
			data, err := sonic.Marshal(cmd)
			if err != nil {
				h.logger.Error("failed to encode command", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = sess.Enqueue(cmd)
				return
			}
			h.logger.Debug("command delivered",
				zap.String("session", sess.ID),
				zap.String("command", cmd.Name),
				zap.String("transport", "ws"),
			)
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) close(conn *websocket.Conn, sess *session.Session) {
	reason := "runtime detached"
	if sess.Closed() {
		reason = "session closed"
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
