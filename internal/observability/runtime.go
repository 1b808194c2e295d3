package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/product-catalog/internal/config"

	"go.opentelemetry.io/otel/attribute"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Runtime owns the OTel providers for the lifetime of the API process.
type Runtime struct {
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

// InitRuntime builds logs, then metrics, then traces. A failure part way
// through shuts down whatever was already started.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{}
	var err error
	if rt.LoggerProvider, err = InitLogs(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if rt.MeterProvider, err = InitMetrics(ctx, cfg, logger); err != nil {
		return nil, errors.Join(err, rt.Shutdown(ctx))
	}
	if rt.TracerProvider, err = InitTracing(ctx, cfg, logger); err != nil {
		return nil, errors.Join(err, rt.Shutdown(ctx))
	}
	return rt, nil
}

// Shutdown flushes traces and metrics before logs so that shutdown errors
// from the first two still reach the log exporter.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"tracer provider", shutdownFunc(r.TracerProvider)},
		{"meter provider", shutdownFunc(r.MeterProvider)},
		{"logger provider", shutdownFunc(r.LoggerProvider)},
	}
	var errs []error
	for _, stage := range stages {
		if stage.fn == nil {
			continue
		}
		if err := stage.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", stage.name, err))
		}
	}
	return errors.Join(errs...)
}

type shutdowner interface {
	Shutdown(context.Context) error
}

func shutdownFunc[T shutdowner](p T) func(context.Context) error {
	var zero T
	if any(p) == any(zero) {
		return nil
	}
	return p.Shutdown
}

// serviceResource describes this process to every exporter.
func serviceResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("service.namespace", "catalog"),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
	)
}
