package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"serenity/config"
	"serenity/internal/entity"
	"serenity/internal/repository"
	"serenity/internal/service"

	"github.com/sirupsen/logrus"
)

type seedUser struct {
	Name     string
	Email    string
	Password string
	Role     entity.UserRole
}

var sampleUsers = []seedUser{
	{Name: "John Doe", Email: "admin@example.com", Password: "password", Role: entity.UserRoleAdmin},
	{Name: "Jane Doe", Email: "guest@example.com", Password: "password", Role: entity.UserRoleGuest},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := config.NewLogger(cfg.Log)

	ctx := context.Background()
	db, err := config.ConnectionDb(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}

	created, err := seedUsers(ctx, repository.NewUserRepository(db), service.BcryptPasswordHasher{Cost: cfg.Auth.BcryptCost}, time.Now().UTC(), sampleUsers)
	if err != nil {
		logger.WithError(err).Error("seed failed")
		os.Exit(1)
	}
	logger.WithField("created", created).Info("database has been seeded")
}

// seedUsers inserts verified accounts, skipping addresses that already exist.
func seedUsers(ctx context.Context, users repository.UserRepository, hasher service.PasswordHasher, now time.Time, seeds []seedUser) (int, error) {
	created := 0
	for _, seed := range seeds {
		existing, err := users.FindByEmail(ctx, seed.Email)
		if err != nil {
			return created, fmt.Errorf("find %s: %w", seed.Email, err)
		}
		if existing != nil {
			continue
		}
		hash, err := hasher.Hash(seed.Password)
		if err != nil {
			return created, fmt.Errorf("hash password: %w", err)
		}
		verifiedAt := now
		user := &entity.User{
			Email:           seed.Email,
			Name:            seed.Name,
			PasswordHash:    hash,
			Role:            seed.Role,
			Verified:        true,
			EmailVerifiedAt: &verifiedAt,
		}
		if err := users.Create(ctx, user); err != nil {
			return created, fmt.Errorf("create %s: %w", seed.Email, err)
		}
		created++
	}
	return created, nil
}
