package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/product-catalog/internal/observability"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
	HTTPClient  *http.Client
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status3xx     int64
	Status4xx     int64
	Status5xx     int64
}

type request struct {
	method string
	path   string
	body   []byte
}

// requestFactory builds the next request for a profile. rng is owned by the
// dispatch loop, so factories must not retain it.
type requestFactory func(rng *rand.Rand) request

func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	profile := strings.ToLower(cfg.Profile)
	if profile == "" {
		profile = "mixed"
	}
	factories := factoriesForProfile(profile)
	if len(factories) == 0 {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	// Image redirects point at object storage; count the 302 itself.
	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var total, failures, s2xx, s3xx, s4xx, s5xx int64
	jobs := make(chan request, cfg.Concurrency*2)
	wg := sync.WaitGroup{}

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				req, err := http.NewRequestWithContext(ctx, job.method, cfg.BaseURL+job.path, bytes.NewReader(job.body))
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				if job.body != nil {
					req.Header.Set("Content-Type", "application/json")
				}
				if job.method == http.MethodPost && job.path == "/products" {
					req.Header.Set("Idempotency-Key", uuid.NewString())
				}
				resp, err := noRedirect.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						atomic.AddInt64(&failures, 1)
						observability.RecordLoadgenRequest(context.Background(), "transport_error", profile)
					}
					continue
				}
				_ = resp.Body.Close()
				atomic.AddInt64(&total, 1)
				class := statusClass(resp.StatusCode)
				observability.RecordLoadgenRequest(context.Background(), class, profile)
				switch class {
				case "2xx":
					atomic.AddInt64(&s2xx, 1)
				case "3xx":
					atomic.AddInt64(&s3xx, 1)
				case "4xx":
					atomic.AddInt64(&s4xx, 1)
				case "5xx":
					atomic.AddInt64(&s5xx, 1)
				}
			}
		}()
	}

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15))
	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return Result{
				TotalRequests: total,
				Failures:      failures,
				Status2xx:     s2xx,
				Status3xx:     s3xx,
				Status4xx:     s4xx,
				Status5xx:     s5xx,
			}, nil
		case <-ticker.C:
			job := factories[i%len(factories)](rng)
			i++
			select {
			case jobs <- job:
			case <-ctx.Done():
			}
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func factoriesForProfile(profile string) []requestFactory {
	switch profile {
	case "read-heavy":
		return []requestFactory{listProducts, getProduct, listProducts, productImage, readiness}
	case "mixed":
		return []requestFactory{listProducts, getProduct, createProduct, updateProduct, productImage, seedProducts}
	case "error-heavy":
		return []requestFactory{missingProduct, invalidCreate, invalidID, listProducts}
	default:
		return nil
	}
}

func listProducts(*rand.Rand) request { return request{method: http.MethodGet, path: "/products"} }
func readiness(*rand.Rand) request    { return request{method: http.MethodGet, path: "/health/ready"} }
func seedProducts(*rand.Rand) request { return request{method: http.MethodPost, path: "/products/seed"} }

func getProduct(rng *rand.Rand) request {
	return request{method: http.MethodGet, path: fmt.Sprintf("/products/%d", 1+rng.IntN(3))}
}

func productImage(rng *rand.Rand) request {
	return request{method: http.MethodGet, path: fmt.Sprintf("/products/%d/image", 1+rng.IntN(3))}
}

func createProduct(rng *rand.Rand) request {
	body := fmt.Sprintf(`{"name":"Loadgen Item %d","price":"$%d.%02d"}`, rng.IntN(100000), 1+rng.IntN(500), rng.IntN(100))
	return request{method: http.MethodPost, path: "/products", body: []byte(body)}
}

func updateProduct(rng *rand.Rand) request {
	body := fmt.Sprintf(`{"price":"$%d"}`, 1+rng.IntN(500))
	return request{method: http.MethodPatch, path: fmt.Sprintf("/products/%d", 1+rng.IntN(3)), body: []byte(body)}
}

func missingProduct(rng *rand.Rand) request {
	return request{method: http.MethodGet, path: fmt.Sprintf("/products/%d", 900000+rng.IntN(1000))}
}

func invalidCreate(*rand.Rand) request {
	return request{method: http.MethodPost, path: "/products", body: []byte(`{"name":"","price":""}`)}
}

func invalidID(*rand.Rand) request { return request{method: http.MethodGet, path: "/products/abc"} }
