// Package launcher starts a real browser for every new automation session.
//
// It listens to the endpoint registry's created events. When an endpoint
// that creates a session is instantiated, the configured browser command is
// started on a pseudo terminal with the session's init page URL, and
// whatever the browser prints is streamed to the debug log.
package launcher
