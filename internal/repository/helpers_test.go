package repository

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/sandeepkv93/product-catalog/internal/config"
	"github.com/sandeepkv93/product-catalog/internal/database"
)

func newRepositoryDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		DatabaseDriver: config.DriverSQLite,
		DatabaseURL:    "file:" + filepath.Join(t.TempDir(), "repository.db"),
	}
	if err := database.Migrate(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func strPtr(s string) *string { return &s }
