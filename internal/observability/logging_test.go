package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestFanoutHandlerStampsTraceIDsWhenSpanActive(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newFanoutHandler(slog.NewJSONHandler(&buf, nil)))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	logger.InfoContext(ctx, "product created", "product_id", 7)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["trace_id"] != traceID.String() || line["span_id"] != spanID.String() {
		t.Fatalf("expected trace ids on record, got %v", line)
	}
}

func TestFanoutHandlerOmitsTraceIDsWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newFanoutHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("catalog listed")

	if bytes.Contains(buf.Bytes(), []byte("trace_id")) {
		t.Fatalf("expected no trace_id without a span, got %s", buf.String())
	}
}

func TestFanoutHandlerWritesToEverySinkAtItsLevel(t *testing.T) {
	var infoBuf, errBuf bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)).With("component", "seed")

	logger.Info("seed skipped")
	logger.Error("seed failed")

	if bytes.Count(infoBuf.Bytes(), []byte("\n")) != 2 {
		t.Fatalf("expected both records on info sink, got %q", infoBuf.String())
	}
	if bytes.Count(errBuf.Bytes(), []byte("\n")) != 1 || !bytes.Contains(errBuf.Bytes(), []byte(`"component":"seed"`)) {
		t.Fatalf("expected only the error record with attrs on error sink, got %q", errBuf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRuntimeShutdownSkipsMissingProviders(t *testing.T) {
	var rt *Runtime
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil runtime shutdown: %v", err)
	}
	if err := (&Runtime{}).Shutdown(context.Background()); err != nil {
		t.Fatalf("empty runtime shutdown: %v", err)
	}
}
