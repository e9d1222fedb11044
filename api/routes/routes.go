package routes

import (
	"serenity/api/handler"
	"serenity/api/middleware"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	Health         handler.HealthHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       middleware.Limiter
	SignInRate     middleware.Limiter
	Log            *logrus.Logger
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	health handler.HealthHandler,
	authMiddleware middleware.AuthMiddleware,
	authRate middleware.Limiter,
	signInRate middleware.Limiter,
	log *logrus.Logger,
) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		Health:         health,
		AuthMiddleware: authMiddleware,
		AuthRate:       authRate,
		SignInRate:     signInRate,
		Log:            log,
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo
	authRate := middleware.RateLimit(r.AuthRate, "auth", r.Log)
	signInRate := middleware.RateLimit(r.SignInRate, "sign-in", r.Log)

	e.GET("/healthz", r.Health.Check)

	e.POST("/auth/register", r.Auth.Register, authRate)
	e.POST("/auth/verify-otp", r.Auth.VerifyOTP, authRate)
	e.POST("/auth/resend-otp", r.Auth.ResendOTP, authRate)
	e.POST("/auth/sign-in", r.Auth.SignIn, signInRate)
	e.POST("/auth/sign-out", r.Auth.SignOut, r.AuthMiddleware.RequireAuth)
	e.GET("/auth/session", r.Auth.Session, r.AuthMiddleware.LoadSession)
}
