// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is the minimal listing an order points at. Catalog management
// lives elsewhere; fulfillment only needs the seller and the price basis.
type Product struct {
	BaseModel
	SellerID        uuid.UUID       `json:"seller_id" gorm:"type:uuid;not null;index"`
	Title           string          `json:"title" gorm:"size:255;not null"`
	Description     string          `json:"description" gorm:"type:text"`
	PurchasingPrice float64         `json:"purchasing_price" gorm:"type:decimal(10,2);not null"`
	MarketplaceType MarketplaceType `json:"marketplace_type" gorm:"type:varchar(20);not null;default:'physical'"`
	Images          pq.StringArray  `json:"images" gorm:"type:text[]"`
	Status          ProductStatus   `json:"status" gorm:"type:varchar(20);default:'active';index"`

	// Relationships
	Seller User `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}
