// Package shield provides reusable HTTP security middleware for the upload
// service: security headers, rate limiting, body limits and request tracing.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxUploadBody(16 * 1024 * 1024))
//	r.Use(shield.TraceID)
//	r.Use(shield.NewRateLimiter(db).Middleware)
//
// Or apply the default stack in one call:
//
//	for _, mw := range shield.DefaultStack(db, maxUpload) {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns the standard middleware stack for the public API.
// Ordered: SecurityHeaders → MaxUploadBody → TraceID → RateLimiter.
// Call the rate limiter's StartReloader separately for rule refresh.
func DefaultStack(db *sql.DB, maxUploadBytes int64) ([]func(http.Handler) http.Handler, *RateLimiter) {
	rl := NewRateLimiter(db, "/health")
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxUploadBody(maxUploadBytes),
		TraceID,
		rl.Middleware,
	}, rl
}
