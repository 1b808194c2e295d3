package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/product-catalog/internal/http/response"
	"github.com/sandeepkv93/product-catalog/internal/observability"
	"github.com/sandeepkv93/product-catalog/internal/service"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. Requests without the header pass through unchanged.
type IdempotencyMiddleware struct {
	store service.IdempotencyStore
	ttl   time.Duration
}

func NewIdempotencyMiddleware(store service.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

// rejectedBegin maps a Begin state that stops the request to its response.
var rejectedBegin = map[service.IdempotencyState]struct {
	event   string
	reason  string
	message string
}{
	service.IdempotencyStateConflict:   {"conflict", "fingerprint_conflict", "idempotency key reuse with different payload"},
	service.IdempotencyStateInProgress: {"in_progress", "request_in_progress", "request with this idempotency key is in progress"},
}

func (m *IdempotencyMiddleware) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if key == "" {
				observability.RecordIdempotencyEvent(ctx, scope, "missing_key")
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				observability.RecordIdempotencyEvent(ctx, scope, "invalid_key")
				response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid Idempotency-Key header", nil)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				observability.RecordIdempotencyEvent(ctx, scope, "read_error")
				if IsBodyTooLarge(err) {
					response.Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
					return
				}
				response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := fingerprintRequest(r, scope, body)
			audit := func(event, action, outcome, reason string, extra ...any) {
				observability.EmitAudit(r, observability.AuditInput{
					EventName:  event,
					TargetType: "idempotency_key",
					TargetID:   shortHash(key),
					Action:     action,
					Outcome:    outcome,
					Reason:     reason,
				}, append([]any{"scope", scope}, extra...)...)
			}

			begin, err := m.store.Begin(ctx, scope, key, fingerprint, m.ttl)
			if err != nil {
				observability.RecordIdempotencyEvent(ctx, scope, "store_error")
				audit("idempotency.check", "check", "failure", "store_error", "error", err.Error())
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "idempotency check failed", nil)
				return
			}
			if rejected, ok := rejectedBegin[begin.State]; ok {
				observability.RecordIdempotencyEvent(ctx, scope, rejected.event)
				audit("idempotency.check", "check", "rejected", rejected.reason)
				response.Error(w, r, http.StatusConflict, "CONFLICT", rejected.message, nil)
				return
			}
			if begin.State == service.IdempotencyStateReplay {
				observability.RecordIdempotencyEvent(ctx, scope, "replayed")
				audit("idempotency.replay", "replay", "success", "cached_response")
				writeCachedResponse(w, begin.Cached)
				return
			}

			rec := newCaptureWriter(w)
			next.ServeHTTP(rec, r)
			if rec.statusCode == 0 {
				rec.statusCode = http.StatusOK
			}
			observability.RecordIdempotencyEvent(ctx, scope, "created")
			// 5xx responses are not cached so the client may retry with the same key.
			if rec.statusCode >= http.StatusInternalServerError {
				return
			}
			cached := service.CachedHTTPResponse{
				StatusCode:  rec.statusCode,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := m.store.Complete(ctx, scope, key, fingerprint, cached, m.ttl); err != nil {
				observability.RecordIdempotencyEvent(ctx, scope, "store_error")
				audit("idempotency.complete", "complete", "failure", "store_error", "error", err.Error())
			}
		})
	}
}

func writeCachedResponse(w http.ResponseWriter, cached *service.CachedHTTPResponse) {
	if cached == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if cached.ContentType != "" {
		w.Header().Set("Content-Type", cached.ContentType)
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	if len(cached.Body) > 0 {
		_, _ = w.Write(cached.Body)
	}
}

func fingerprintRequest(r *http.Request, scope string, body []byte) string {
	actor := actorForScope(r)
	routePattern := r.URL.Path
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			routePattern = pattern
		}
	}
	raw := strings.Join([]string{
		scope,
		r.Method,
		routePattern,
		actor,
		hex.EncodeToString(hashBytes(body)),
	}, "\n")
	return hex.EncodeToString(hashBytes([]byte(raw)))
}

func actorForScope(r *http.Request) string {
	return "ip:" + clientIPFromRequest(r)
}

func clientIPFromRequest(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff == "" {
		return ClientIPKey(r)
	}
	parts := strings.Split(xff, ",")
	return strings.TrimSpace(parts[0])
}

func hashBytes(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func shortHash(v string) string {
	full := hex.EncodeToString(hashBytes([]byte(v)))
	if len(full) > 12 {
		return full[:12]
	}
	return full
}

type captureWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{ResponseWriter: w}
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}
