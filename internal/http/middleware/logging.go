// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides request correlation, structured access logging with
// credential scrubbing, and panic recovery:
//
//   - RequestID() gives every request a stable correlation ID, propagated
//     via X-Request-ID and stored in the Gin context.
//   - Logger() emits one structured access log per request, attaches a
//     request-scoped zerolog.Logger for handlers, masks sensitive headers,
//     and scrubs access_token values from logged query strings.
//   - Recovery() converts panics into JSON 500 responses carrying the
//     correlation ID.
//   - LoggerFrom() retrieves the request-scoped logger inside handlers.
//
// Install RequestID first, then Logger, then Recovery, so panics and errors
// are logged with the correlation ID.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// tokenRE scrubs platform access tokens from logged query strings. Tokens
// never belong in logs even when a misbehaving client puts them in a URL.
var tokenRE = regexp.MustCompile(`(?i)(access_token=)[^&\s]+`)

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused; otherwise a new UUIDv4 is generated.
// The ID is written back to the response header and stored in the Gin
// context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// LoggerOptions configures scrubbing for Logger.
type LoggerOptions struct {
	// MaskHeaders lists extra header names whose values are replaced with
	// "[REDACTED]" in logs. Matching is case-insensitive and merged with the
	// built-in set (Authorization, Cookie, Set-Cookie).
	MaskHeaders []string
}

// Logger writes one structured access log per request and stores a
// request-scoped zerolog.Logger in the Gin context (key "logger").
//
// The log level follows the outcome: error for 5xx or collected Gin
// errors, warn for 4xx, info otherwise. Header values in the mask set are
// never logged in the clear, and access_token query values are scrubbed.
func Logger(opts LoggerOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, hidden := mask[strings.ToLower(k)]; hidden {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = strings.Join(vv, ", ")
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("query", scrubQuery(c.Request.URL.RawQuery)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()
		c.Set("logger", &l)

		c.Next()

		ev := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Interface("headers", safeHeaders).
			Logger()

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs a stack trace, and returns a JSON 500
// response carrying the correlation ID.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", asString(rid)).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger attached by Logger().
// A fallback logger without request fields is returned when none is
// attached, so callers need no nil checks.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// scrubQuery masks access tokens and truncates oversized query strings.
func scrubQuery(q string) string {
	q = tokenRE.ReplaceAllString(q, "${1}[REDACTED]")
	if len(q) > maxQueryLogLength {
		return q[:maxQueryLogLength] + "…"
	}
	return q
}

// asString converts a context value to a string, empty when not a string.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
