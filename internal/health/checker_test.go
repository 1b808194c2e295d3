package health

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type mockChecker struct {
	result CheckResult
}

func (m mockChecker) Check(context.Context) CheckResult {
	return m.result
}

func TestProbeRunnerReady(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		mockChecker{result: CheckResult{Name: "db", Healthy: true}},
		mockChecker{result: CheckResult{Name: "redis", Healthy: true}},
	)
	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatal("expected ready")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestProbeRunnerUnready(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		mockChecker{result: CheckResult{Name: "db", Healthy: true}},
		mockChecker{result: CheckResult{Name: "redis", Healthy: false, Error: errors.New("down").Error()}},
	)
	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestProbeRunnerStartupGrace(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 2*time.Second,
		mockChecker{result: CheckResult{Name: "db", Healthy: true}},
	)
	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready during grace period")
	}
	if len(results) != 1 || results[0].Name != "startup_grace" {
		t.Fatalf("unexpected grace results: %+v", results)
	}
}

func TestProbeRunnerSkipsNilCheckers(t *testing.T) {
	runner := NewProbeRunner(0, 0,
		NewDBChecker(nil),
		NewRedisChecker(nil),
		NewImageStorageChecker(nil),
		mockChecker{result: CheckResult{Name: "db", Healthy: true}},
	)
	ready, results := runner.Ready(context.Background())
	if !ready || len(results) != 1 {
		t.Fatalf("expected only the non-nil checker to run, ready=%v results=%+v", ready, results)
	}
}

func TestDBCheckerPingsSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "health.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	res := NewDBChecker(db).Check(context.Background())
	if !res.Healthy || res.Name != "db" {
		t.Fatalf("expected healthy db check, got %+v", res)
	}

	sqlDB, _ := db.DB()
	_ = sqlDB.Close()
	res = NewDBChecker(db).Check(context.Background())
	if res.Healthy || res.Error == "" {
		t.Fatalf("expected closed db to be unhealthy, got %+v", res)
	}
}

func TestRedisCheckerAgainstMiniredis(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if res := NewRedisChecker(client).Check(context.Background()); !res.Healthy {
		t.Fatalf("expected healthy redis, got %+v", res)
	}
	m.Close()
	if res := NewRedisChecker(client).Check(context.Background()); res.Healthy {
		t.Fatalf("expected stopped redis to be unhealthy, got %+v", res)
	}
}

type fakeBucket struct{ err error }

func (f fakeBucket) Check(context.Context) error { return f.err }

func TestImageStorageChecker(t *testing.T) {
	if res := NewImageStorageChecker(fakeBucket{}).Check(context.Background()); !res.Healthy || res.Name != "image_storage" {
		t.Fatalf("expected healthy storage, got %+v", res)
	}
	res := NewImageStorageChecker(fakeBucket{err: errors.New("bucket missing")}).Check(context.Background())
	if res.Healthy || res.Error != "bucket missing" {
		t.Fatalf("expected unhealthy storage, got %+v", res)
	}
}

type slowChecker struct{ name string }

func (s slowChecker) Check(ctx context.Context) CheckResult {
	<-ctx.Done()
	return CheckResult{Name: s.name, Healthy: false, Error: ctx.Err().Error()}
}

func TestProbeRunnerRunsChecksConcurrentlyInOrder(t *testing.T) {
	runner := NewProbeRunner(100*time.Millisecond, 0,
		slowChecker{name: "db"},
		slowChecker{name: "redis"},
		mockChecker{result: CheckResult{Name: "image_storage", Healthy: true}},
	)
	start := time.Now()
	ready, results := runner.Ready(context.Background())
	if elapsed := time.Since(start); elapsed > 180*time.Millisecond {
		t.Fatalf("expected checks to share the timeout window, took %v", elapsed)
	}
	if ready {
		t.Fatal("expected unready when checks time out")
	}
	names := []string{results[0].Name, results[1].Name, results[2].Name}
	if names[0] != "db" || names[1] != "redis" || names[2] != "image_storage" {
		t.Fatalf("expected registration order, got %v", names)
	}
}

func TestImageStorageCheckerReportsTimeout(t *testing.T) {
	res := NewImageStorageChecker(fakeBucket{err: context.DeadlineExceeded}).Check(context.Background())
	if res.Healthy || res.Error != "image storage check timed out" {
		t.Fatalf("expected timeout message, got %+v", res)
	}
}
