// Package http serves the proxy's own pages: the session init page that
// hands a session ID to a freshly launched browser, the embedded browser
// runtime, the browser console log sink, and health and metrics endpoints.
package http
