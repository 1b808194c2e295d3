package domain

import "time"

type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	Price       string    `gorm:"type:text;not null" json:"price"`
	Image       *string   `gorm:"type:text" json:"image"`
	CreatedAt   time.Time `gorm:"not null;index" json:"createdAt"`
}

// ImageRef returns the stored image reference or "" when the product has none.
func (p Product) ImageRef() string {
	if p.Image == nil {
		return ""
	}
	return *p.Image
}
