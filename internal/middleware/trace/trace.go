// Package trace assigns request IDs and logs request start and completion.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	logpkg "finboard/internal/log"

	"github.com/google/uuid"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	// RequestIDHeader is echoed on responses and accepted from trusted callers.
	RequestIDHeader = "X-Request-ID"

	maxIncomingIDLength = 64
)

type Middleware struct {
	extractIP func(*http.Request) string
	logger    *logpkg.StructuredLogger
	total     atomic.Int64
	// totalMicros accumulates handler time for the running average.
	totalMicros atomic.Int64
}

type Metrics struct {
	TotalRequests       int64
	AverageResponseTime time.Duration
}

func NewMiddleware(logger *logpkg.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    logpkg.NewStructuredLogger(logger.WithComponent(logpkg.ComponentTrace)),
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxIncomingIDLength {
			requestID = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		m.logger.LogHTTPStart(ctx, r, clientIP)
		m.total.Add(1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.totalMicros.Add(duration.Microseconds())
		m.logger.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush keeps streaming responses working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// GetRequestID returns the request ID stored by Middleware, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestIDFromRequest adapts GetRequestID for logpkg.RequestIDMiddleware.
func RequestIDFromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}

func (m *Middleware) GetMetrics() Metrics {
	total := m.total.Load()
	var avg time.Duration
	if total > 0 {
		avg = time.Duration(m.totalMicros.Load()/total) * time.Microsecond
	}
	return Metrics{TotalRequests: total, AverageResponseTime: avg}
}
