package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handler serves the login, logout and current user endpoints.
type Handler struct {
	dir     *Directory
	issuer  *Issuer
	revoked *RevocationStore
}

func NewHandler(dir *Directory, issuer *Issuer, revoked *RevocationStore) *Handler {
	return &Handler{dir: dir, issuer: issuer, revoked: revoked}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	user, err := h.dir.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	sess, err := h.issuer.Issue(*user)
	if err != nil {
		return err
	}

	zerolog.Ctx(c.Request().Context()).Info().
		Str("user_id", user.ID).
		Str("role", user.Role.String()).
		Msg("session started")

	return c.JSON(http.StatusOK, sess)
}

// Logout revokes the presented session. It requires SessionMiddleware to
// have attached one.
func (h *Handler) Logout(c echo.Context) error {
	sess := SessionFromContext(c.Request().Context())
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	h.revoked.Revoke(sess.ID, sess.ExpiresAt)

	zerolog.Ctx(c.Request().Context()).Info().Str("user_id", sess.User.ID).Msg("session ended")
	return c.NoContent(http.StatusNoContent)
}

// Me answers with the directory's current record for the session's user,
// not the copy baked into the token.
func (h *Handler) Me(c echo.Context) error {
	sess := SessionFromContext(c.Request().Context())
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	user, ok := h.dir.Lookup(sess.User.ID)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
	}
	return c.JSON(http.StatusOK, user)
}
