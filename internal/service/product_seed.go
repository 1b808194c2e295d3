package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/product-catalog/internal/domain"
	"github.com/sandeepkv93/product-catalog/internal/observability"
)

type SeedReport struct {
	Inserted int
}

func (r SeedReport) Skipped() bool { return r.Inserted == 0 }

// InitialProducts returns the demonstration set in insertion order.
func InitialProducts() []domain.Product {
	return []domain.Product{
		{
			Name:        "Smartwatch Pro X",
			Description: strPtr("All-day health tracking, built\u2011in GPS, and a crisp AMOLED display \u2014 designed for active lifestyles."),
			Price:       "$299",
			Image:       strPtr("smartwatch.webp"),
		},
		{
			Name:        "Noise\u2011Cancelling Studio Headphones",
			Description: strPtr("Premium over\u2011ear comfort with Adaptive Noise Cancellation and 35 hours battery life."),
			Price:       "$199",
			Image:       strPtr("headphones.webp"),
		},
		{
			Name:        "Pro Mechanical Wireless Keyboard",
			Description: strPtr("Compact, hot\u2011swappable switches, Bluetooth + USB\u2011C, and customizable backlight \u2014 built for speed and comfort."),
			Price:       "$129",
			Image:       strPtr("keyboard.jpg"),
		},
	}
}

// SeedInitialProducts inserts InitialProducts when the catalog is empty.
// Concurrent callers in this process share one database round trip.
func (s *ProductServiceImpl) SeedInitialProducts(ctx context.Context) (SeedReport, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "seed", outcome, time.Since(start)) }()
	ctx, span := observability.StartSpan(ctx, "product.seed")

	v, err, _ := s.seedGroup.Do("seed", func() (any, error) {
		return s.repo.InsertIfEmpty(ctx, InitialProducts())
	})
	if err != nil {
		outcome = "error"
		observability.RecordProductSeed(ctx, "error", 0)
		observability.EndSpan(span, err)
		return SeedReport{}, err
	}
	report := SeedReport{Inserted: v.(int)}
	span.SetAttributes(attribute.Int("seed.inserted", report.Inserted))
	observability.EndSpan(span, nil)
	if report.Skipped() {
		observability.RecordProductSeed(ctx, "skipped", 0)
	} else {
		observability.RecordProductSeed(ctx, "inserted", report.Inserted)
	}
	return report, nil
}

func strPtr(s string) *string { return &s }
