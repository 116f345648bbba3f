// Package middleware provides the HTTP middleware for the uartd API.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing for browser consoles
//   - RateLimit: Per-IP token bucket rate limiting with idle eviction
//
// CORS allows the X-Session-Label request header and exposes the
// X-Trace-ID and X-Span-ID response headers.
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
