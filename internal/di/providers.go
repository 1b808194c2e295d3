package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/product-catalog/internal/app"
	"github.com/sandeepkv93/product-catalog/internal/config"
	"github.com/sandeepkv93/product-catalog/internal/database"
	"github.com/sandeepkv93/product-catalog/internal/health"
	"github.com/sandeepkv93/product-catalog/internal/http/handler"
	"github.com/sandeepkv93/product-catalog/internal/http/middleware"
	"github.com/sandeepkv93/product-catalog/internal/http/router"
	"github.com/sandeepkv93/product-catalog/internal/observability"
	"github.com/sandeepkv93/product-catalog/internal/repository"
	"github.com/sandeepkv93/product-catalog/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideImageStorage,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewProductRepository,
)

var ServiceSet = wire.NewSet(
	provideProductService,
	wire.Bind(new(service.ProductService), new(*service.ProductServiceImpl)),
	provideIdempotencyStore,
)

var HTTPSet = wire.NewSet(
	handler.NewProductHandler,
	provideRateLimiter,
	provideIdempotencyMiddleware,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

// provideRuntimeDB applies pending migrations first when DB_MIGRATE_ON_STARTUP is set.
func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.MigrateOnStartup {
		if err := database.Migrate(cfg); err != nil {
			return nil, fmt.Errorf("migrate on startup: %w", err)
		}
	}
	return database.Open(cfg)
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RateLimitRedisEnabled && !cfg.IdempotencyRedisEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

// provideImageStorage returns a nil ImageStorage when uploads are disabled.
func provideImageStorage(cfg *config.Config) (service.ImageStorage, error) {
	if !cfg.ImageStorageEnabled {
		return nil, nil
	}
	storage, err := service.NewMinIOImageStorage(service.MinIOConfig{
		Endpoint:   cfg.MinIOEndpoint,
		AccessKey:  cfg.MinIOAccessKey,
		SecretKey:  cfg.MinIOSecretKey,
		Bucket:     cfg.MinIOBucket,
		UseSSL:     cfg.MinIOUseSSL,
		PresignTTL: cfg.ImageURLTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init image storage: %w", err)
	}
	return storage, nil
}

func provideProductService(cfg *config.Config, repo repository.ProductRepository, images service.ImageStorage, logger *slog.Logger) *service.ProductServiceImpl {
	return service.NewProductService(repo, images, service.ProductImageOptions{
		MaxBytes:      cfg.ImageMaxBytes,
		PublicBaseURL: cfg.ImagePublicBaseURL,
	}, logger)
}

func provideIdempotencyStore(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) service.IdempotencyStore {
	if !cfg.IdempotencyEnabled {
		return nil
	}
	if cfg.IdempotencyRedisEnabled && redisClient != nil {
		return service.NewRedisIdempotencyStore(redisClient, "catalog:idem")
	}
	return service.NewDBIdempotencyStore(db)
}

func provideIdempotencyMiddleware(cfg *config.Config, store service.IdempotencyStore) router.IdempotencyMiddlewareFactory {
	if !cfg.IdempotencyEnabled || store == nil {
		return nil
	}
	return middleware.NewIdempotencyMiddleware(store, cfg.IdempotencyTTL).Middleware
}

func provideRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.RateLimiterFunc {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":api")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute).Middleware()
}

func provideRouterDependencies(
	productHandler *handler.ProductHandler,
	rateLimiter router.RateLimiterFunc,
	idempotency router.IdempotencyMiddlewareFactory,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		ProductHandler:  productHandler,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		APIRateLimitRPM: cfg.APIRateLimitPerMin,
		RateLimiter:     rateLimiter,
		Idempotency:     idempotency,
		Readiness:       readiness,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		ImageMaxBytes:   cfg.ImageMaxBytes,
		EnableOTelHTTP:  cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient, images service.ImageStorage) *health.ProbeRunner {
	checkers := []health.Checker{health.NewDBChecker(db)}
	if redisClient != nil {
		checkers = append(checkers, health.NewRedisChecker(redisClient))
	}
	if images != nil {
		checkers = append(checkers, health.NewImageStorageChecker(images))
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, checkers...)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
	products service.ProductService,
) (*app.App, error) {
	if cfg.SeedOnStartup {
		report, err := products.SeedInitialProducts(context.Background())
		if err != nil {
			return nil, fmt.Errorf("seed on startup: %w", err)
		}
		logger.Info("startup seed finished", "inserted", report.Inserted, "skipped", report.Skipped())
	}
	return app.New(cfg, logger, server, runtime, db, redisClient, readiness), nil
}
