// Package middleware provides the gin middleware stack of the proxy.
//
// Stack order as wired by the server:
//   - RequestID: tags each request with X-Request-ID
//   - AccessLog: structured request logging via zap
//   - BodyLimit: caps request bodies (screenshots and scripts can be large)
//   - CORS: the runtime calls back from proxied origins, so every origin is allowed
//   - RateLimit: per-IP token bucket with idle client eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.AccessLog(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
