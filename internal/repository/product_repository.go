package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sandeepkv93/product-catalog/internal/domain"
	"github.com/sandeepkv93/product-catalog/internal/observability"
)

var ErrProductNotFound = errors.New("product not found")

// seedLockKey identifies the advisory lock taken while seeding on postgres.
const seedLockKey int64 = 0x70726f64

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uint) (*domain.Product, error)
	ListAll(ctx context.Context) ([]domain.Product, error)
	Update(ctx context.Context, id uint, updates map[string]any) error
	DeleteByID(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
	InsertIfEmpty(ctx context.Context, products []domain.Product) (int, error)
}

type GormProductRepository struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "product", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "product", "create", "success")
	return nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uint) (*domain.Product, error) {
	var product domain.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "product", "find_by_id", "not_found")
			return nil, ErrProductNotFound
		}
		observability.RecordRepositoryOperation(ctx, "product", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "product", "find_by_id", "success")
	return &product, nil
}

// ListAll returns every product, oldest first. Rows created in the same
// instant keep insertion order through the id tiebreak.
func (r *GormProductRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	if err := r.db.WithContext(ctx).Order("created_at asc").Order("id asc").Find(&products).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "product", "list_all", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "product", "list_all", "success")
	return products, nil
}

// Update writes only the given columns and never inserts a row.
func (r *GormProductRepository) Update(ctx context.Context, id uint, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "product", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "product", "update", "not_found")
		return ErrProductNotFound
	}
	observability.RecordRepositoryOperation(ctx, "product", "update", "success")
	return nil
}

func (r *GormProductRepository) DeleteByID(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.Product{}, id)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "product", "delete_by_id", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "product", "delete_by_id", "not_found")
		return ErrProductNotFound
	}
	observability.RecordRepositoryOperation(ctx, "product", "delete_by_id", "success")
	return nil
}

func (r *GormProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Count(&count).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "product", "count", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(ctx, "product", "count", "success")
	return count, nil
}

// InsertIfEmpty inserts products in order when the table holds no rows and
// reports how many were written. The count and the inserts share one
// transaction; on postgres an advisory lock serializes concurrent seeders.
func (r *GormProductRepository) InsertIfEmpty(ctx context.Context, products []domain.Product) (int, error) {
	inserted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", seedLockKey).Error; err != nil {
				return err
			}
		}
		var count int64
		if err := tx.Model(&domain.Product{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for i := range products {
			// one insert per row so created_at follows slice order
			if err := tx.Create(&products[i]).Error; err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "product", "insert_if_empty", "error")
		return 0, err
	}
	outcome := "inserted"
	if inserted == 0 {
		outcome = "skipped"
	}
	observability.RecordRepositoryOperation(ctx, "product", "insert_if_empty", outcome)
	return inserted, nil
}
