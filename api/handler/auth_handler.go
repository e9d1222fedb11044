package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"serenity/api/middleware"
	"serenity/internal/dto"
	"serenity/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const invalidBodyMessage = "Invalid request body"

type AuthHandler struct {
	Service       *service.AuthService
	Log           *logrus.Logger
	CookieName    string
	CookieDomain  string
	SecureCookies bool
	SameSite      http.SameSite
	now           func() time.Time
}

func NewAuthHandler(svc *service.AuthService, log *logrus.Logger) *AuthHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthHandler{
		Service:       svc,
		Log:           log,
		CookieName:    middleware.DefaultSessionCookie,
		SecureCookies: true,
		SameSite:      http.SameSiteLaxMode,
		now:           time.Now,
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := decodeJSON(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.Failure(invalidBodyMessage))
	}
	resp, err := h.Service.Register(c.Request().Context(), req, clientMeta(c))
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req dto.VerifyOTPRequest
	if err := decodeJSON(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.Failure(invalidBodyMessage))
	}
	resp, err := h.Service.VerifyRegistrationOTP(c.Request().Context(), req, clientMeta(c))
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req dto.ResendOTPRequest
	if err := decodeJSON(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.Failure(invalidBodyMessage))
	}
	resp, err := h.Service.ResendOTP(c.Request().Context(), req, clientMeta(c))
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) SignIn(c echo.Context) error {
	var req dto.SignInRequest
	if err := decodeJSON(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.Failure(invalidBodyMessage))
	}
	resp, err := h.Service.SignIn(c.Request().Context(), req, clientMeta(c))
	if err != nil {
		return h.writeServiceError(c, err)
	}
	h.setSessionCookie(c, resp.Token, resp.ExpiresAt)
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) SignOut(c echo.Context) error {
	token, ok := middleware.TokenFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, dto.Failure(service.ErrInvalidSession.Error()))
	}
	if err := h.Service.SignOut(c.Request().Context(), token, clientMeta(c)); err != nil {
		return h.writeServiceError(c, err)
	}
	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, dto.ActionResponse{Success: true, Message: service.SignOutSuccessMessage})
}

// Session answers with the signed-in user, or a null user for anonymous callers.
func (h *AuthHandler) Session(c echo.Context) error {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return c.JSON(http.StatusOK, dto.SessionResponse{})
	}
	resp := dto.UserResponseFromEntity(user)
	return c.JSON(http.StatusOK, dto.SessionResponse{User: &resp})
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, expiresAt time.Time) {
	if token == "" {
		return
	}
	maxAge := int(expiresAt.Sub(h.now()).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetCookie(&http.Cookie{
		Name:     h.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   maxAge,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}

// writeServiceError is the single place workflow errors become responses.
// Session issuer failures go to echo's error handler as they are.
func (h *AuthHandler) writeServiceError(c echo.Context, err error) error {
	var sessionErr *service.SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr.Err
	}

	var validationErr *service.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, service.ErrMissingField),
		errors.Is(err, service.ErrInvalidOTP):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidSession):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrUnverifiedAccount):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateEmail), errors.Is(err, service.ErrAlreadyVerified):
		status = http.StatusConflict
	case errors.Is(err, service.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, service.ErrEmailDelivery):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).WithField("path", c.Path()).Error("auth workflow failed")
	}
	return c.JSON(status, dto.Failure(service.PublicMessage(err)))
}

func clientMeta(c echo.Context) service.ClientMeta {
	return service.ClientMeta{
		IPAddress: stringPtr(c.RealIP()),
		UserAgent: stringPtr(c.Request().UserAgent()),
	}
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
