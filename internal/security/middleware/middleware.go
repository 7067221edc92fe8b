package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/i18n"
	"github.com/aryan0dhankhar/secretsanta/internal/security"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
	"github.com/aryan0dhankhar/secretsanta/internal/security/ratelimit"
)

type ActorContextKey struct{}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an id, reusing a sane incoming one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(audit.WithRequestID(r.Context(), id)))
	})
}

// Authenticate builds the request Actor. A missing or invalid token leaves
// the caller anonymous; route guards decide whether that is acceptable.
// Browsers cannot set headers on websocket upgrades, so a token query
// parameter is accepted there.
func Authenticate(tm *auth.TokenManager, defaultLocale string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := domain.Actor{
				Role:       domain.RoleAnonymous,
				RemoteAddr: ClientIP(r),
				Locale:     i18n.Negotiate(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), defaultLocale),
			}

			token := ""
			if h := r.Header.Get("Authorization"); h != "" {
				if t, err := auth.ExtractToken(h); err == nil {
					token = t
				}
			} else if strings.HasPrefix(r.URL.Path, "/ws/") {
				token = r.URL.Query().Get("token")
			}

			if token != "" {
				claims, err := tm.ValidateToken(token)
				if err != nil {
					log.Debug("rejected token", slog.String("error", err.Error()), slog.String("path", r.URL.Path))
				} else {
					actor.Username = claims.Username
					actor.Role = claims.Role
				}
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequirePermission rejects anonymous callers with 401 and callers whose
// role lacks perm with 403.
func RequirePermission(authz *security.AuthorizationService, activity *audit.Logger, perm security.Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFromContext(r.Context())
		if actor.Role == domain.RoleAnonymous || actor.Role == "" {
			writeError(w, actor.Locale, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}
		if err := authz.ValidatePermission(actor, perm); err != nil {
			if activity != nil {
				activity.LogDenied(r.Context(), actor, "Permission: "+string(perm)+", Path: "+r.URL.Path)
			}
			writeError(w, actor.Locale, http.StatusForbidden, "FORBIDDEN")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sensitive paths get a tighter per-address limit than the API default.
var strictPaths = map[string]struct{}{
	"/api/auth/login":         {},
	"/api/auth/register":      {},
	"/api/auth/reset-request": {},
	"/api/setup":              {},
}

const (
	strictMaxRequests = 10
	strictWindow      = time.Minute
)

func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			actor := ActorFromContext(r.Context())
			addr := actor.RemoteAddr
			if addr == "" {
				addr = ClientIP(r)
			}
			key := actor.Username
			if key == "" {
				key = addr
			}

			var allowed bool
			if _, strict := strictPaths[r.URL.Path]; strict && r.Method == http.MethodPost {
				allowed = limiter.AllowStrict(addr, strictMaxRequests, strictWindow)
			} else {
				allowed = limiter.Allow(key)
			}
			if !allowed {
				log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", r.URL.Path))
				writeError(w, actor.Locale, http.StatusTooManyRequests, "RATE_LIMITED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware logs every mutating request with its outcome.
func AuditMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			actor := ActorFromContext(r.Context())
			log.Info("mutating request",
				slog.String("request_id", audit.RequestID(r.Context())),
				slog.String("actor", actor.Name()),
				slog.String("remote_addr", actor.RemoteAddr),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// ActorFromContext returns the request actor, anonymous when absent.
func ActorFromContext(ctx context.Context) domain.Actor {
	if a, ok := ctx.Value(ActorContextKey{}).(domain.Actor); ok {
		return a
	}
	return domain.Actor{Role: domain.RoleAnonymous}
}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actor)
}

// ClientIP returns the remote host without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, locale string, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": i18n.Message(locale, code), "code": code})
}
