package config

import (
	"context"
	"fmt"
	"time"

	"serenity/internal/entity"
	"serenity/internal/migrations"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectionDb opens the store once for the whole process and brings the
// schema up to date.
func ConnectionDb(ctx context.Context, cfg DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		PrepareStmt: false,
		Logger:      logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DSN), gormConfig)
	default:
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := migrate(ctx, db, cfg.Driver); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log.WithField("driver", cfg.Driver).Info("connected to database")
	return db, nil
}

func migrate(ctx context.Context, db *gorm.DB, driver string) error {
	if driver == "sqlite" {
		if err := db.WithContext(ctx).AutoMigrate(entity.All()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	if err := migrations.Up(ctx, sqlDB); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
