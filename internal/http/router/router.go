package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/product-catalog/internal/health"
	"github.com/sandeepkv93/product-catalog/internal/http/handler"
	"github.com/sandeepkv93/product-catalog/internal/http/middleware"
	"github.com/sandeepkv93/product-catalog/internal/http/response"
)

const (
	defaultMaxBodyBytes   int64 = 1 << 20
	multipartBodyOverhead int64 = 1 << 20

	IdempotencyScopeProductCreate = "products.create"
)

type Dependencies struct {
	ProductHandler  *handler.ProductHandler
	CORSOrigins     []string
	APIRateLimitRPM int
	RateLimiter     RateLimiterFunc
	Idempotency     IdempotencyMiddlewareFactory
	Readiness       *health.ProbeRunner
	MaxBodyBytes    int64
	ImageMaxBytes   int64
	EnableOTelHTTP  bool
}

type RateLimiterFunc func(http.Handler) http.Handler
type IdempotencyMiddlewareFactory func(scope string) func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))

	limiter := dep.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware()
	}

	// Limits are per route group; nesting BodyLimit would let the smaller one win.
	jsonLimit := dep.MaxBodyBytes
	if jsonLimit <= 0 {
		jsonLimit = defaultMaxBodyBytes
	}
	uploadLimit := jsonLimit
	if dep.ImageMaxBytes > 0 && dep.ImageMaxBytes+multipartBodyOverhead > uploadLimit {
		uploadLimit = dep.ImageMaxBytes + multipartBodyOverhead
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/products", func(r chi.Router) {
		r.Use(limiter)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BodyLimit(jsonLimit))
			r.Get("/", dep.ProductHandler.List)
			r.Post("/seed", dep.ProductHandler.Seed)
			r.Get("/{id}", dep.ProductHandler.GetByID)
			r.Get("/{id}/image", dep.ProductHandler.Image)
			r.Delete("/{id}", dep.ProductHandler.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BodyLimit(uploadLimit))
			createChain := []func(http.Handler) http.Handler{}
			if dep.Idempotency != nil {
				createChain = append(createChain, dep.Idempotency(IdempotencyScopeProductCreate))
			}
			r.With(createChain...).Post("/", dep.ProductHandler.Create)
			r.Patch("/{id}", dep.ProductHandler.Update)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
