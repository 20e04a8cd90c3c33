// Package bridge delivers commands into the browser context and returns
// their results.
//
// The injected browser runtime pulls commands from its session's outbound
// channel (long-poll or WebSocket, see internal/api/bridge), runs the handler
// registered under the command name, and reports back a Reply carrying the
// same command. Calls are keyed by session ID and command name, so one
// session has at most one in-flight call per command.
//
// Call Outcomes:
//   - Reply received: result returned (or ErrScript if the handler threw)
//   - Timeout elapsed: ErrTimeout (Config.Timeout, zero waits forever)
//   - Session destroyed: ErrSessionClosed
//   - Caller cancelled: the context's error
//
// Payloads are string-keyed JSON. Image results travel as bare base64; the
// data-URI header a canvas produces is stripped before transmission.
//
// Example Usage:
//
//	b := bridge.New(bridge.Config{Timeout: 30 * time.Second}, logger)
//	reply, err := b.Send(ctx, sess, e.DTO())
package bridge
