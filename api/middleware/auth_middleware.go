package middleware

import (
	"errors"
	"net/http"
	"strings"

	"serenity/internal/dto"
	"serenity/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const DefaultSessionCookie = "session_token"

// AuthMiddleware resolves the session token from the Authorization header or
// the session cookie.
type AuthMiddleware struct {
	Sessions   service.SessionIssuer
	CookieName string
	Log        *logrus.Logger
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ok, err := m.load(c)
		if err != nil {
			return err
		}
		if !ok {
			return c.JSON(http.StatusUnauthorized, dto.Failure(service.ErrInvalidSession.Error()))
		}
		return next(c)
	}
}

// LoadSession attaches the caller's session when one is presented and valid,
// and lets anonymous requests through.
func (m AuthMiddleware) LoadSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := m.load(c); err != nil {
			return err
		}
		return next(c)
	}
}

func (m AuthMiddleware) load(c echo.Context) (bool, error) {
	if m.Sessions == nil {
		return false, nil
	}
	token := ExtractToken(c, m.cookieName())
	if token == "" {
		return false, nil
	}
	user, session, err := m.Sessions.VerifySession(c.Request().Context(), token)
	if errors.Is(err, service.ErrInvalidSession) {
		return false, nil
	}
	if err != nil {
		if m.Log != nil {
			m.Log.WithError(err).Error("session lookup failed")
		}
		return false, echo.NewHTTPError(http.StatusInternalServerError, service.GenericErrorMessage)
	}
	SetAuthContext(c, user, session.ID, token)
	return true, nil
}

func (m AuthMiddleware) cookieName() string {
	if m.CookieName == "" {
		return DefaultSessionCookie
	}
	return m.CookieName
}

// ExtractToken prefers a bearer token over the cookie.
func ExtractToken(c echo.Context, cookieName string) string {
	if token := extractBearerToken(c.Request()); token != "" {
		return token
	}
	cookie, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
