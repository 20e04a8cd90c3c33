/*
Package transport carries bridge traffic between the server and the runtime
injected into the browser.

Two transports share the same routes under /<prefix>/session/:sid/bridge:

	GET  .../bridge     long-poll for the next command (204 when none arrived)
	POST .../bridge     report a command result
	GET  .../bridge/ws  WebSocket carrying both directions

Frames are JSON: commands are types.Command, results types.Reply.
*/
package transport
