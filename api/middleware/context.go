package middleware

import (
	"serenity/internal/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	contextUserKey    = "auth_user"
	contextSessionKey = "auth_session_id"
	contextTokenKey   = "auth_token"
)

func SetAuthContext(c echo.Context, user *entity.User, sessionID uuid.UUID, token string) {
	c.Set(contextUserKey, user)
	c.Set(contextSessionKey, sessionID)
	c.Set(contextTokenKey, token)
}

func UserFromContext(c echo.Context) (*entity.User, bool) {
	user, ok := c.Get(contextUserKey).(*entity.User)
	return user, ok && user != nil
}

func SessionIDFromContext(c echo.Context) (uuid.UUID, bool) {
	sessionID, ok := c.Get(contextSessionKey).(uuid.UUID)
	return sessionID, ok
}

func TokenFromContext(c echo.Context) (string, bool) {
	token, ok := c.Get(contextTokenKey).(string)
	return token, ok && token != ""
}
