package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"serenity/api/handler"
	"serenity/api/middleware"
	"serenity/api/routes"
	"serenity/internal/entity"
	"serenity/internal/repository"
	"serenity/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type captureSender struct {
	mu   sync.Mutex
	last service.EmailMessage
	err  error
}

func (s *captureSender) SendEmail(_ context.Context, message service.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.last = message
	return nil
}

var codePattern = regexp.MustCompile(`verification code is: (\d{6})`)

func (s *captureSender) code(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	match := codePattern.FindStringSubmatch(s.last.Text)
	require.Len(t, match, 2)
	return match[1]
}

type testApp struct {
	echo   *echo.Echo
	db     *gorm.DB
	users  repository.UserRepository
	mailer *captureSender
}

func setupHandlerTest(t *testing.T, sessions service.SessionIssuer) *testApp {
	t.Helper()
	dsn := fmt.Sprintf("file:http_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entity.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	users := repository.NewUserRepository(db)
	if sessions == nil {
		sessions = service.NewJWTSessionIssuer("test-secret", "serenity", 0, repository.NewSessionRepository(db), users, service.RealClock{})
	}
	mailer := &captureSender{}
	otps := service.NewOTPService(repository.NewOTPRepository(db), service.RealClock{}, service.OTPConfig{}, log)
	svc := service.NewAuthService(
		users,
		repository.NewSecurityLogRepository(db),
		otps,
		mailer,
		service.BcryptPasswordHasher{Cost: bcrypt.MinCost},
		sessions,
		service.RealClock{},
		validator.New(),
		log,
	)

	e := echo.New()
	authHandler := handler.NewAuthHandler(svc, log)
	authHandler.SecureCookies = false
	router := routes.NewRouter(e, authHandler, handler.HealthHandler{DB: db}, middleware.AuthMiddleware{Sessions: sessions, Log: log}, nil, nil, log)
	router.RegisterRoutes()

	return &testApp{echo: e, db: db, users: users, mailer: mailer}
}

func (a *testApp) do(t *testing.T, method string, path string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == middleware.DefaultSessionCookie {
			return cookie
		}
	}
	t.Fatalf("no %s cookie set", middleware.DefaultSessionCookie)
	return nil
}

const janeJSON = `{"name":"Jane Doe","email":"jane@example.com","password":"password123","confirmPassword":"password123"}`

func TestAuthFlowOverHTTP(t *testing.T) {
	app := setupHandlerTest(t, nil)

	rec := app.do(t, http.MethodPost, "/auth/register", janeJSON)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, "jane@example.com", body["email"])
	require.NotEmpty(t, body["userId"])

	rec = app.do(t, http.MethodPost, "/auth/sign-in", `{"email":"jane@example.com","password":"password123"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, service.ErrUnverifiedAccount.Error(), decodeBody(t, rec)["message"])

	rec = app.do(t, http.MethodPost, "/auth/verify-otp", fmt.Sprintf(`{"email":"jane@example.com","otpCode":%q}`, app.mailer.code(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, service.VerifySuccessMessage, decodeBody(t, rec)["message"])

	rec = app.do(t, http.MethodPost, "/auth/sign-in", `{"email":"jane@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	require.NotEmpty(t, body["token"])
	cookie := sessionCookie(t, rec)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, body["token"], cookie.Value)

	rec = app.do(t, http.MethodGet, "/auth/session", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)
	require.Equal(t, "Jane Doe", user["name"])
	require.Equal(t, true, user["verified"])

	rec = app.do(t, http.MethodPost, "/auth/sign-out", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, -1, sessionCookie(t, rec).MaxAge)

	rec = app.do(t, http.MethodGet, "/auth/session", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user":null}`, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/auth/sign-out", "", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthErrorStatuses(t *testing.T) {
	app := setupHandlerTest(t, nil)

	rec := app.do(t, http.MethodPost, "/auth/register", `{"name":"Jo","email":"jane@example.com","password":"password123","confirmPassword":"password123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"success":false,"message":"Name must be at least 3 characters"}`, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/auth/register", `{"name":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/auth/register", janeJSON).Code)

	rec = app.do(t, http.MethodPost, "/auth/register", janeJSON)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/auth/resend-otp", `{"email":"jane@example.com"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = app.do(t, http.MethodPost, "/auth/resend-otp", `{"email":"nobody@example.com"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodPost, "/auth/resend-otp", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Email is required", decodeBody(t, rec)["message"])

	rec = app.do(t, http.MethodPost, "/auth/verify-otp", `{"email":"jane@example.com","otpCode":"000000x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid or expired OTP code", decodeBody(t, rec)["message"])

	rec = app.do(t, http.MethodPost, "/auth/sign-in", `{"email":"nobody@example.com","password":"password123"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid email or password", decodeBody(t, rec)["message"])

	app.mailer.err = errors.New("provider unavailable")
	rec = app.do(t, http.MethodPost, "/auth/register", `{"name":"John Roe","email":"john@example.com","password":"password123","confirmPassword":"password123"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "Failed to send verification email. Please try again.", decodeBody(t, rec)["message"])
}

type failingIssuer struct{}

func (failingIssuer) IssueSession(context.Context, entity.User, service.ClientMeta) (*service.IssuedSession, error) {
	return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "session store offline")
}

func (failingIssuer) VerifySession(context.Context, string) (*entity.User, *entity.Session, error) {
	return nil, nil, service.ErrInvalidSession
}

func (failingIssuer) RevokeSession(context.Context, string) (*entity.Session, error) {
	return nil, service.ErrInvalidSession
}

func TestSignInLeavesIssuerErrorsToEcho(t *testing.T) {
	app := setupHandlerTest(t, failingIssuer{})

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, app.users.Create(context.Background(), &entity.User{
		Email:        "jane@example.com",
		Name:         "Jane Doe",
		PasswordHash: string(hash),
		Role:         entity.UserRoleGuest,
		Verified:     true,
	}))

	rec := app.do(t, http.MethodPost, "/auth/sign-in", `{"email":"jane@example.com","password":"password123"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "session store offline", decodeBody(t, rec)["message"])
}

func TestHealthz(t *testing.T) {
	app := setupHandlerTest(t, nil)

	rec := app.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
