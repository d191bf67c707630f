package http

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// KeyFunc extracts the client identity a request claims for.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc prefers keyHeader when set, then the first X-Forwarded-For
// entry when trustXFF, then the remote host.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		return strings.TrimSpace(r.RemoteAddr)
	}
}

// Throttle rejects bursts per client key before they reach storage. It does
// not take part in allocation decisions.
func Throttle(store *ThrottleStore, keyFn KeyFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, wait := store.Allow(keyFn(r)); !ok {
				seconds := int64(math.Ceil(wait.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type TokenParser interface {
	Parse(raw string) (string, error)
}

type adminKey struct{}

// AdminOnly requires a valid "Bearer <token>" Authorization header.
func AdminOnly(parser TokenParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "authorization header is required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if !(len(parts) == 2 && parts[0] == "Bearer") {
				writeError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}

			subject, err := parser.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					writeError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, subject)))
		})
	}
}

// AdminFromContext returns the admin subject set by AdminOnly.
func AdminFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(adminKey{}).(string)
	return subject
}

// RequestLogger logs one structured line per request.
func RequestLogger(log *zap.Logger) func(next http.Handler) http.Handler {
	if log == nil {
		log = zap.L()
	}
	sugar := log.Sugar()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			l := sugar.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
			if ww.Status() >= http.StatusInternalServerError {
				l.Errorw("request")
				return
			}
			l.Infow("request")
		})
	}
}
