package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryan0dhankhar/secretsanta/internal/observability/metrics"
	"github.com/aryan0dhankhar/secretsanta/internal/security"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
	"github.com/aryan0dhankhar/secretsanta/internal/security/middleware"
	"github.com/aryan0dhankhar/secretsanta/internal/security/ratelimit"
	"github.com/aryan0dhankhar/secretsanta/internal/service"
)

// RouterConfig carries everything the HTTP surface needs
type RouterConfig struct {
	Auth           *service.AuthService
	Users          *service.UserService
	Draws          *service.DrawService
	Resets         *service.ResetService
	Activity       *audit.Logger
	Tokens         *auth.TokenManager
	Limiter        *ratelimit.Limiter
	Health         *HealthHandler
	AllowedOrigins []string
	DefaultLocale  string
	Logger         *slog.Logger
}

// NewRouter builds the mux and wraps it in the middleware chain:
// request id -> CORS -> authenticate -> sanitize -> rate limit -> content
// type -> audit -> metrics -> mux.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	authz := security.NewAuthorizationService(log)
	guard := func(perm security.Permission, fn http.HandlerFunc) http.Handler {
		return middleware.RequirePermission(authz, cfg.Activity, perm, fn)
	}

	authH := NewAuthHandler(cfg.Auth, cfg.Resets, log)
	usersH := NewUserHandler(cfg.Users, log)
	drawsH := NewDrawHandler(cfg.Draws, log)
	meH := NewMeHandler(cfg.Draws, cfg.Users, log)
	resetsH := NewResetHandler(cfg.Resets, log)
	activityH := NewActivityHandler(cfg.Activity, log, cfg.AllowedOrigins)

	mux := http.NewServeMux()

	// public
	mux.HandleFunc("GET /healthz", cfg.Health.Health)
	mux.HandleFunc("GET /readyz", cfg.Health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/setup", authH.SetupStatus)
	mux.HandleFunc("POST /api/setup", authH.Setup)
	mux.HandleFunc("POST /api/auth/login", authH.Login)
	mux.HandleFunc("POST /api/auth/register", authH.Register)
	mux.HandleFunc("POST /api/auth/reset-request", authH.ResetRequest)

	// participant
	mux.Handle("GET /api/me", guard(security.PermViewOwnDraw, meH.Show))
	mux.Handle("PUT /api/me/interests", guard(security.PermEditProfile, meH.Interests))
	mux.Handle("PUT /api/me/purchase", guard(security.PermRecordPurchase, meH.Purchase))
	mux.Handle("PUT /api/me/draws/{name}/purchase", guard(security.PermRecordPurchase, meH.DrawPurchase))
	mux.Handle("GET /api/me/draws/{name}/assignment", guard(security.PermViewOwnDraw, meH.Assignment))
	mux.Handle("GET /api/me/draws", guard(security.PermViewOwnDraw, meH.PastDraws))

	// admin
	mux.Handle("GET /api/admin/users", guard(security.PermManageUsers, usersH.List))
	mux.Handle("POST /api/admin/users", guard(security.PermManageUsers, usersH.Create))
	mux.Handle("PUT /api/admin/users/{username}", guard(security.PermManageUsers, usersH.Upsert))
	mux.Handle("DELETE /api/admin/users/{username}", guard(security.PermManageUsers, usersH.Delete))
	mux.Handle("PUT /api/admin/users/{username}/active", guard(security.PermManageUsers, usersH.SetActive))
	mux.Handle("POST /api/admin/users/{username}/password", guard(security.PermManageUsers, usersH.SetPassword))
	mux.Handle("GET /api/admin/draws", guard(security.PermManageDraws, drawsH.List))
	mux.Handle("POST /api/admin/draws", guard(security.PermManageDraws, drawsH.Create))
	mux.Handle("POST /api/admin/draws/{name}/activate", guard(security.PermManageDraws, drawsH.Activate))
	mux.Handle("POST /api/admin/draws/{name}/archive", guard(security.PermManageDraws, drawsH.Archive))
	mux.Handle("DELETE /api/admin/draws/{name}", guard(security.PermManageDraws, drawsH.Delete))
	mux.Handle("GET /api/admin/status", guard(security.PermViewStatus, drawsH.Status))
	mux.Handle("GET /api/admin/reset-requests", guard(security.PermResolveResets, resetsH.List))
	mux.Handle("POST /api/admin/reset-requests/{username}/approve", guard(security.PermResolveResets, resetsH.Approve))
	mux.Handle("POST /api/admin/reset-requests/{username}/reject", guard(security.PermResolveResets, resetsH.Reject))
	mux.Handle("GET /api/admin/activity", guard(security.PermViewActivity, activityH.Recent))
	mux.Handle("GET /ws/admin/activity", guard(security.PermViewActivity, activityH.Stream))

	var h http.Handler = metrics.HTTPMetricsMiddleware(mux)
	h = middleware.AuditMiddleware(log)(h)
	h = middleware.ValidateJSONContentType(log)(h)
	if cfg.Limiter != nil {
		h = middleware.RateLimitMiddleware(cfg.Limiter, log)(h)
	}
	h = middleware.SanitizeInputs(log)(h)
	h = middleware.Authenticate(cfg.Tokens, cfg.DefaultLocale, log)(h)
	h = middleware.CORS(cfg.AllowedOrigins)(h)
	return middleware.RequestID(h)
}
