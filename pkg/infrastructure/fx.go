package infrastructure

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/lumenly/eventcore/pkg/gormstore"
)

// Module provides the ambient infrastructure every deployment needs:
// config, database connection, logger, and metrics registry. It
// deliberately stops short of wiring an eventstore.EventStore[A] or
// engine.Engine[A,C,U] — fx provider functions can't be generic, so the
// aggregate-specific wiring (which A, which C, which U) belongs in the
// consuming application's own fx.Module, built on top of the adapters
// this module provides.
var Module = fx.Options(
	fx.Provide(
		LoadConfig,
		DatabaseProvider,
		LoggerProvider,
		MetricsRegistryProvider,
		MetricsProvider,
	),
	fx.Invoke(registerDatabaseLifecycle),
)

// DatabaseProvider opens the GORM connection config.Database describes.
func DatabaseProvider(config *Config) (*gorm.DB, error) {
	return gormstore.OpenDatabase(gormstore.DatabaseConfig{
		Driver: config.Database.Driver,
		DSN:    config.Database.DSN,
	})
}

// LoggerProvider builds the process-wide Logger.
func LoggerProvider(config *Config) (domain.Logger, error) {
	return NewLogger(config.Logging.Level, config.Logging.Format)
}

// MetricsRegistryProvider supplies the default Prometheus registry, kept
// as its own provider so a test fx.App can substitute a fresh
// prometheus.NewRegistry() without touching the global one.
func MetricsRegistryProvider() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// MetricsProvider builds the Metrics collectors registered against reg.
func MetricsProvider(reg prometheus.Registerer) *Metrics {
	return NewMetrics(reg)
}

func registerDatabaseLifecycle(lc fx.Lifecycle, db *gorm.DB, logger domain.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				logger.Error("failed to get underlying database connection", "error", err)
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				logger.Error("failed to ping database", "error", err)
				return err
			}
			logger.Info("database connection established")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			logger.Info("closing database connection")
			return sqlDB.Close()
		},
	})
}
