// Package main is the entry point for the web-driverify proxy.
//
// The proxy sits between a WebDriver client and a real browser. It answers
// WebDriver commands itself, relaying the browser-side parts to a runtime
// it injects into every page the browser loads through it.
//
// Architecture:
//
//	WebDriver client → proxy (/session/...) → bridge → injected runtime
//	Browser          → proxy (forward mode) → origin sites
//
// Configuration:
//   - CONFIG_FILE (YAML or TOML, keys named like the environment variables)
//   - Environment variables (12-factor)
//   - CLI flags (override both)
//
// Usage:
//
//	# Launch Chromium for every new session
//	./server -port 4444 -browser chromium -browser-args "--proxy-server=localhost:4444,{url}"
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
