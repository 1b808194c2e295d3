package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/product-catalog/internal/config"
	"github.com/sandeepkv93/product-catalog/internal/database"
	"github.com/sandeepkv93/product-catalog/internal/health"
	"github.com/sandeepkv93/product-catalog/internal/observability"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Readiness     *health.ProbeRunner

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *App {
	a := &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		DB:            db,
		Redis:         redisClient,
		Readiness:     readiness,
	}
	if cfg != nil {
		a.ShutdownTimeout = cfg.ShutdownTimeout
		a.ShutdownHTTPDrainTimeout = cfg.ShutdownHTTPDrainTimeout
		a.ShutdownObservabilityTimeout = cfg.ShutdownObservabilityTimeout
	}
	return a
}

// Shutdown drains HTTP first, then flushes telemetry, then closes the stores.
// Each stage gets its own budget carved out of the overall timeout.
func (a *App) Shutdown(ctx context.Context) error {
	totalTimeout := a.ShutdownTimeout
	if totalTimeout <= 0 {
		totalTimeout = 20 * time.Second
	}
	totalCtx, totalCancel := context.WithTimeout(ctx, totalTimeout)
	defer totalCancel()

	var errs []error
	if a.Server != nil {
		httpTimeout := a.ShutdownHTTPDrainTimeout
		if httpTimeout <= 0 {
			httpTimeout = 10 * time.Second
		}
		httpCtx, httpCancel := context.WithTimeout(totalCtx, httpTimeout)
		if err := a.Server.Shutdown(httpCtx); err != nil {
			a.logger().Error("failed to shutdown http server", "error", err)
			errs = append(errs, err)
		}
		httpCancel()
	}

	if a.Observability != nil {
		obsTimeout := a.ShutdownObservabilityTimeout
		if obsTimeout <= 0 {
			obsTimeout = 8 * time.Second
		}
		obsCtx, obsCancel := context.WithTimeout(totalCtx, obsTimeout)
		if err := a.Observability.Shutdown(obsCtx); err != nil {
			a.logger().Error("failed to shutdown observability", "error", err)
			errs = append(errs, err)
		}
		obsCancel()
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger().Error("failed to close redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			a.logger().Error("failed to close database connection", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
