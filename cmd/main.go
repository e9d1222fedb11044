package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"serenity/api/handler"
	apiMiddleware "serenity/api/middleware"
	"serenity/api/routes"
	"serenity/config"
	"serenity/internal/repository"
	"serenity/internal/service"
	"serenity/internal/worker"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := config.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectionDb(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}

	clock := service.RealClock{}
	userRepo := repository.NewUserRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)

	var emailSender service.EmailSender = service.NewResendEmailSender(cfg.Email.ResendAPIKey, cfg.Email.From)
	if cfg.Email.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not set, verification emails are only logged")
		emailSender = service.LogEmailSender{Log: logger}
	}

	otpService := service.NewOTPService(otpRepo, clock, service.OTPConfig{
		TTL:            cfg.OTP.TTL,
		ResendCooldown: cfg.OTP.ResendCooldown,
	}, logger)
	sessionIssuer := service.NewJWTSessionIssuer(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTIssuer,
		cfg.Auth.SessionTTL,
		sessionRepo,
		userRepo,
		clock,
	)
	authService := service.NewAuthService(
		userRepo,
		securityRepo,
		otpService,
		emailSender,
		service.BcryptPasswordHasher{Cost: cfg.Auth.BcryptCost},
		sessionIssuer,
		clock,
		validator.New(),
		logger,
	)

	authHandler := handler.NewAuthHandler(authService, logger)
	authHandler.CookieName = cfg.Auth.CookieName
	authHandler.CookieDomain = cfg.Auth.CookieDomain
	authHandler.SecureCookies = cfg.Auth.CookieSecure

	authRate, signInRate := buildLimiters(cfg, logger)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":  v.Status,
				"method":  v.Method,
				"uri":     v.URI,
				"ip":      v.RemoteIP,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{
		Sessions:   sessionIssuer,
		CookieName: cfg.Auth.CookieName,
		Log:        logger,
	}
	router := routes.NewRouter(app, authHandler, handler.HealthHandler{DB: db}, authMiddleware, authRate, signInRate, logger)
	router.RegisterRoutes()

	sweeper := &worker.Sweeper{
		OTPs:         otpService,
		Sessions:     sessionRepo,
		SecurityLogs: securityRepo,
		Interval:     cfg.OTP.CleanupInterval,
		LogRetention: cfg.OTP.SecurityLogRetention,
		Now:          clock.Now,
		Log:          logger,
	}
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// buildLimiters shares counters through Redis when it is enabled, and falls
// back to per-process token buckets otherwise.
func buildLimiters(cfg *config.Config, logger *logrus.Logger) (apiMiddleware.Limiter, apiMiddleware.Limiter) {
	window := cfg.RateLimit.Window
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.WithField("addr", cfg.Redis.Addr).Info("using redis rate limiter")
		return apiMiddleware.NewRedisLimiter(client, cfg.Redis.Prefix, window, cfg.RateLimit.AuthRequests),
			apiMiddleware.NewRedisLimiter(client, cfg.Redis.Prefix, window, cfg.RateLimit.SignInRequests)
	}

	memory := func(n int) apiMiddleware.Limiter {
		if n <= 0 || window <= 0 {
			return nil
		}
		return apiMiddleware.NewMemoryLimiter(rate.Every(window/time.Duration(n)), n, 10*window)
	}
	return memory(cfg.RateLimit.AuthRequests), memory(cfg.RateLimit.SignInRequests)
}
