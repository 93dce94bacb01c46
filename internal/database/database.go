// Package database handles database connections and migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"localpulse/internal/config"
	"localpulse/internal/observability"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger routes GORM output through slog. Only failed and slow
// statements are logged unless the level is raised to Info.
type GormLogger struct {
	log           *slog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger returns a GORM logger writing through l, or slog.Default.
func NewGormLogger(l *slog.Logger, level logger.LogLevel) *GormLogger {
	if l == nil {
		l = slog.Default()
	}
	return &GormLogger{log: l, level: level, slowThreshold: 200 * time.Millisecond}
}

func (g *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	g.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	g.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	g.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (g *GormLogger) printf(ctx context.Context, min logger.LogLevel, level slog.Level, msg string, args []interface{}) {
	if g.level >= min {
		g.log.Log(ctx, level, fmt.Sprintf(msg, args...))
	}
}

// Trace is called after every statement. Missing rows and duplicate keys
// are expected outcomes that callers map to API errors, so they are not
// logged as failures.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case err != nil && g.level >= logger.Error && !expectedQueryError(err):
		level, msg = slog.LevelError, "sql statement failed"
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow sql statement"
	case g.level >= logger.Info:
		level, msg = slog.LevelDebug, "sql statement"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.log.LogAttrs(ctx, level, msg, attrs...)
}

func expectedQueryError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// DSN builds the PostgreSQL connection string for cfg.
func DSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, sslMode)
}

// Connect opens a database connection using the provided configuration and returns the gorm DB instance.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger:         NewGormLogger(observability.Logger, logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	observability.Logger.Info("database connected", slog.String("host", cfg.DBHost), slog.String("name", cfg.DBName))

	// Production schemas are managed out of band.
	if !cfg.IsProduction() {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate brings the schema for every persistent model up to date.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks the connection is alive.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
