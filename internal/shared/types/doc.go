// Package types provides the wire-level data structures shared by the proxy.
//
// These types cross package boundaries and the network, so they carry JSON
// tags and no behavior beyond small helpers.
//
// Core Types:
//   - Command: The DTO of an endpoint instance (identifier + command name)
//   - Confirmation: A pending acknowledgment (command + human-readable status)
//   - Payload: The protocol response envelope returned to automation clients
//   - Reply: A browser-side result reported back through the bridge
//
// Example Usage:
//
//	payload := types.Payload{SessionID: sess.ID, Value: title}
//	payload.Confirm = &types.Confirmation{Cmd: cmd, Data: "forward complete"}
package types
