package server

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/oggyb/matchpoint/internal/auth"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserIDFrom returns the authenticated user of a request.
func UserIDFrom(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(userIDKey).(uint64)
	return id, ok
}

// authenticate resolves the Authorization header through the injected
// verifier and stashes the user id on the request context. Ineligible
// identities are rejected the same as missing ones.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.TokenFromHeader(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "missing bearer token"})
			return
		}
		identity, err := s.verifier.Verify(token)
		if err != nil || !identity.Eligible {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "token is invalid or account ineligible"})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, identity.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusWriter captures the status code for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack delegates to the wrapped writer so WebSocket upgrades pass through
// the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Debug("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start),
			)
		})
	}
}
