package rbac

import (
	"log/slog"
	"net/http"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
	"github.com/meridian-edu/meridian-backoffice/internal/shared"
)

// SessionEmailKey stores the login email for super-admin resolution.
const SessionEmailKey = "email"

// Middleware wires role-gate authorization for HTTP handlers.
type Middleware struct {
	Policy *Policy
	Logger *slog.Logger
}

// Require gates a route group on the policy decision for the given
// resource. The verb is taken from the request method.
func (m Middleware) Require(resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := m.CurrentRole(r)
			if err := m.Policy.Authorize(role, r.Method, resource); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("authorization denied",
						slog.String("resource", resource),
						slog.String("method", r.Method),
						slog.String("role", string(role)))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentRole resolves the caller's effective role from the session.
func (m Middleware) CurrentRole(r *http.Request) Role {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return RoleNone
	}
	role := ParseRole(sess.Role())
	return m.Policy.EffectiveRole(role, sess.Get(SessionEmailKey))
}
