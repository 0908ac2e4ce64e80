package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const SessionKey contextKey = "session"

// SessionMiddleware attaches the caller's Session when a bearer token is
// present. Requests without Authorization pass through anonymously; malformed,
// expired and revoked tokens are rejected with 401.
func SessionMiddleware(issuer *Issuer, revoked *RevocationStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return next(c)
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			sess, err := issuer.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
			}
			if revoked != nil && revoked.IsRevoked(sess.ID) {
				return echo.NewHTTPError(http.StatusUnauthorized, "session has been revoked").SetInternal(ErrSessionRevoked)
			}

			ctx := WithSession(c.Request().Context(), sess)
			l := zerolog.Ctx(ctx).With().Str("user_id", sess.User.ID).Logger()
			ctx = l.WithContext(ctx)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("session_user_id", sess.User.ID)

			return next(c)
		}
	}
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

// SessionFromContext returns the caller's session, or nil for anonymous requests.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(SessionKey).(*Session)
	return sess
}

// Capability is a role check such as Role.CanSchedule.
type Capability func(Role) bool

// RequireCapability rejects requests whose session lacks the capability:
// 401 without a session, 403 with one. Mounting it is optional; without it
// roles only shape what clients offer.
func RequireCapability(name string, capability Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFromContext(c.Request().Context())
			if sess == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !capability(sess.User.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "role "+sess.User.Role.String()+" cannot "+name)
			}
			return next(c)
		}
	}
}
