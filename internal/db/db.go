package db

import (
	"fmt"
	"time"

	"github.com/EmpoweredVote/lots-backend/internal/config"
	applog "github.com/EmpoweredVote/lots-backend/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the Postgres pool described by cfg and stores it in DB.
func Connect(cfg config.Config, log *applog.Logger) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Surface slow queries through the structured logger.
	lg := logger.New(
		log.With("component", "gorm"),
		logger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  gormLevel(cfg.LogMode),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(WithSearchPath(cfg.DatabaseURL, cfg.DBSchema)), &gorm.Config{
		Logger: lg,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if cfg.DBSchema != "" {
		if err := EnsureSchema(db, cfg.DBSchema); err != nil {
			return nil, fmt.Errorf("ensure schema %s: %w", cfg.DBSchema, err)
		}
	}

	DB = db
	log.Info("connected to database", "schema", cfg.DBSchema)
	return db, nil
}

func gormLevel(mode string) logger.LogLevel {
	if mode == "production" || mode == "prod" {
		return logger.Warn
	}
	return logger.Info
}
