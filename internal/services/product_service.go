// internal/services/product_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoni/sokoni-backend/internal/models"
	"github.com/sokoni/sokoni-backend/internal/utils"
)

// ProductService manages the seller catalog. Listings carry the seller's
// asking price; the buyer-facing price is derived from it at checkout.
type ProductService struct {
	db *gorm.DB
}

type CreateProductRequest struct {
	Title           string                 `json:"title" validate:"required,min=3,max=255"`
	Description     string                 `json:"description,omitempty"`
	PurchasingPrice float64                `json:"purchasing_price" validate:"required,min=0.01"`
	MarketplaceType models.MarketplaceType `json:"marketplace_type" validate:"required,oneof=physical local_grocery"`
	Images          []string               `json:"images,omitempty"`
}

type UpdateProductRequest struct {
	Title           string               `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description     string               `json:"description,omitempty"`
	PurchasingPrice float64              `json:"purchasing_price,omitempty" validate:"omitempty,min=0.01"`
	Images          []string             `json:"images,omitempty"`
	Status          models.ProductStatus `json:"status,omitempty" validate:"omitempty,oneof=active sold_out suspended"`
}

func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db}
}

func (s *ProductService) CreateProduct(sellerID uuid.UUID, req *CreateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var seller models.User
	if err := s.db.First(&seller, "id = ?", sellerID).Error; err != nil {
		return nil, fmt.Errorf("seller not found: %w", err)
	}
	if seller.Status != models.UserStatusActive {
		return nil, errors.New("seller account is not active")
	}
	if seller.UserType != models.UserTypeSeller {
		return nil, errors.New("only sellers can create listings")
	}

	product := &models.Product{
		SellerID:        sellerID,
		Title:           req.Title,
		Description:     req.Description,
		PurchasingPrice: req.PurchasingPrice,
		MarketplaceType: req.MarketplaceType,
		Images:          req.Images,
		Status:          models.ProductStatusActive,
	}

	if err := s.db.Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

func (s *ProductService) GetProduct(id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.Preload("Seller").First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("product not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func (s *ProductService) UpdateProduct(sellerID, productID uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var product models.Product
	if err := s.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("product not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if product.SellerID != sellerID {
		return nil, errors.New("unauthorized to modify this product")
	}

	if req.Title != "" {
		product.Title = req.Title
	}
	if req.Description != "" {
		product.Description = req.Description
	}
	if req.PurchasingPrice > 0 {
		product.PurchasingPrice = req.PurchasingPrice
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Status != "" {
		product.Status = req.Status
	}

	if err := s.db.Save(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return &product, nil
}

func (s *ProductService) ListProducts(params utils.PaginationParams, marketplaceType string) ([]models.Product, int64, error) {
	query := s.db.Model(&models.Product{}).Where("status = ?", models.ProductStatusActive)

	if marketplaceType != "" {
		query = query.Where("marketplace_type = ?", marketplaceType)
	}
	if params.Search != "" {
		search := "%" + params.Search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", search, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"created_at", "purchasing_price", "title"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var products []models.Product
	if err := query.Preload("Seller").Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}

func (s *ProductService) ListSellerProducts(sellerID uuid.UUID, params utils.PaginationParams) ([]models.Product, int64, error) {
	query := s.db.Model(&models.Product{}).Where("seller_id = ?", sellerID)

	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"created_at", "purchasing_price", "title"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}
