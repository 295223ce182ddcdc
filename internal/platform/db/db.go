package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Database wraps DB connectivity for postgres and sqlite deployments.
// Transaction helpers live in the repositories so outbox rows commit with state.
type Database struct {
	DB     *gorm.DB
	Driver string
}

// Connect opens url. "sqlite://<path>" and "file:" URLs select sqlite with a
// single writer connection; "postgres://", "postgresql://" and bare key=value
// DSNs select postgres.
func Connect(url string, logger *slog.Logger) (*Database, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("database url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		dial      gorm.Dialector
		driver    string
		openConns = 40
	)
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		dial = sqlite.Open(strings.TrimPrefix(url, "sqlite://"))
		driver = "sqlite"
		openConns = 1
	case strings.HasPrefix(url, "file:"):
		dial = sqlite.Open(url)
		driver = "sqlite"
		openConns = 1
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"), strings.Contains(url, "="):
		dial = postgres.Open(url)
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database url scheme")
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(slogGorm.WithLogger(logger)),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve %s sql db handle: %w", driver, err)
	}
	sqlDB.SetMaxOpenConns(openConns)
	sqlDB.SetConnMaxIdleTime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == "sqlite" {
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("sqlite journal mode: %w", err)
		}
		if err := db.Exec("PRAGMA foreign_keys=ON;").Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("sqlite foreign keys: %w", err)
		}
	}
	return &Database{DB: db, Driver: driver}, nil
}

// Migrate creates or updates the tables for models.
func (d *Database) Migrate(models ...any) error {
	if d == nil || d.DB == nil {
		return errors.New("database is not connected")
	}
	if err := d.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
