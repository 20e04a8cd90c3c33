// Package client is a small WebDriver client for the proxy, used by wdctl.
//
// It speaks the same JSON wire format the dispatcher writes: every response
// is a payload with a status and a value, and failures carry an error value
// that is surfaced as *Error.
package client
