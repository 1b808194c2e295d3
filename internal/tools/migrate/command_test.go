package migrate

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandeepkv93/product-catalog/internal/config"
	"github.com/sandeepkv93/product-catalog/internal/tools/common"
)

func runCI(t *testing.T, cfg *config.Config, args ...string) (common.CIResult, error) {
	t.Helper()
	cmd := newRootCommand(&options{loadConfig: func() (*config.Config, error) { return cfg, nil }})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append(append([]string{}, args...), "--ci", "--env-file", ""))
	err := cmd.Execute()
	var res common.CIResult
	if decodeErr := json.Unmarshal(out.Bytes(), &res); decodeErr != nil {
		t.Fatalf("decode ci output %q: %v", out.String(), decodeErr)
	}
	return res, err
}

func sqliteConfig(t *testing.T) *config.Config {
	return &config.Config{
		DatabaseDriver: config.DriverSQLite,
		DatabaseURL:    "file:" + filepath.Join(t.TempDir(), "migrate.db"),
	}
}

func TestPlanListsEmbeddedMigrationsOnFreshDatabase(t *testing.T) {
	res, err := runCI(t, sqliteConfig(t), "plan")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	joined := strings.Join(res.Details, "\n")
	if !strings.Contains(joined, "would apply 000001_create_products") || !strings.Contains(joined, "000002_create_idempotency_records") {
		t.Fatalf("unexpected plan: %+v", res.Details)
	}
}

func TestUpStatusDownRoundTrip(t *testing.T) {
	cfg := sqliteConfig(t)

	res, err := runCI(t, cfg, "up")
	if err != nil || !res.OK {
		t.Fatalf("up: %v %+v", err, res)
	}
	if !strings.Contains(strings.Join(res.Details, "\n"), "0 -> 2") {
		t.Fatalf("unexpected up details: %+v", res.Details)
	}

	res, err = runCI(t, cfg, "status")
	if err != nil || !strings.Contains(strings.Join(res.Details, "\n"), "schema up to date") {
		t.Fatalf("status: %v %+v", err, res.Details)
	}

	res, err = runCI(t, cfg, "plan")
	if err != nil || len(res.Details) != 1 || res.Details[0] != "nothing to apply" {
		t.Fatalf("plan after up: %v %+v", err, res.Details)
	}

	res, err = runCI(t, cfg, "down", "--steps", "1")
	if err != nil || !strings.Contains(strings.Join(res.Details, "\n"), "schema version: 1") {
		t.Fatalf("down: %v %+v", err, res.Details)
	}

	res, err = runCI(t, cfg, "status")
	if err != nil || !strings.Contains(strings.Join(res.Details, "\n"), "migrations pending") {
		t.Fatalf("status after down: %v %+v", err, res.Details)
	}
}

func TestDownRejectsNonPositiveSteps(t *testing.T) {
	res, err := runCI(t, sqliteConfig(t), "down", "--steps", "0")
	if err == nil || res.OK {
		t.Fatalf("expected failure, got %+v", res)
	}
	if common.ExitCode(err) != common.ExitCodeFailure {
		t.Fatalf("unexpected exit code for %v", err)
	}
}
