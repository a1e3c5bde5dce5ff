package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/atarasov/supplyhub/internal/events"
	"github.com/atarasov/supplyhub/internal/logging"
	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/service/search"
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
)

// Publisher is satisfied by events.Producer.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// Service owns the supplier catalog. Search-index and event writes are
// best-effort mirrors of the database rows.
type Service struct {
	DB     *gorm.DB
	ES     *elasticsearch.Client
	Index  string
	Events Publisher
}

type ListFilter struct {
	Category   string
	SupplierID uuid.UUID
	InStock    bool
}

func (s *Service) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	s.mirror(ctx, p, "product_created")
	return p, nil
}

// UpdateParams carries a partial product update. Nil fields are left
// untouched, so zero is a settable value (stock back to 0 marks a product
// out of stock).
type UpdateParams struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price"`
	Unit          *string  `json:"unit"`
	StockQuantity *int     `json:"stock_quantity"`
	Category      *string  `json:"category"`
	ImageURL      *string  `json:"image_url"`
}

func (s *Service) Update(ctx context.Context, supplierID, productID uuid.UUID, updates UpdateParams) (*models.Product, error) {
	var product models.Product
	if err := s.DB.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
		}
		return nil, err
	}
	if product.SupplierID != supplierID {
		return nil, fmt.Errorf("%w: product belongs to another supplier", ErrForbidden)
	}

	if updates.Name != nil {
		product.Name = *updates.Name
	}
	if updates.Description != nil {
		product.Description = *updates.Description
	}
	if updates.Price != nil {
		product.Price = *updates.Price
	}
	if updates.Unit != nil {
		product.Unit = *updates.Unit
	}
	if updates.StockQuantity != nil {
		product.StockQuantity = *updates.StockQuantity
	}
	if updates.Category != nil {
		product.Category = *updates.Category
	}
	if updates.ImageURL != nil {
		product.ImageURL = *updates.ImageURL
	}
	if err := validate(&product); err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Save(&product).Error; err != nil {
		return nil, err
	}
	s.mirror(ctx, &product, "product_updated")
	return &product, nil
}

func (s *Service) Delete(ctx context.Context, supplierID, productID uuid.UUID) error {
	res := s.DB.WithContext(ctx).
		Where("id = ? AND supplier_id = ?", productID, supplierID).
		Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}

	if s.ES != nil {
		if err := search.DeleteProduct(ctx, s.ES, s.Index, productID.String()); err != nil {
			logging.FromContext(ctx).Warn("search index delete failed", "error", err)
		}
	}
	if s.Events != nil {
		event := map[string]any{"type": "product_deleted", "product_id": productID, "supplier_id": supplierID}
		if err := s.Events.PublishEvent(ctx, events.TopicProductEvents, productID.String(), event); err != nil {
			logging.FromContext(ctx).Warn("event publish failed", "error", err)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.DB.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) (int64, []models.Product, error) {
	q := s.DB.WithContext(ctx).Model(&models.Product{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.SupplierID != uuid.Nil {
		q = q.Where("supplier_id = ?", f.SupplierID)
	}
	if f.InStock {
		q = q.Where("stock_quantity > 0")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var products []models.Product
	err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&products).Error
	return total, products, err
}

func validate(p *models.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: price must be > 0", ErrValidation)
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("%w: stock_quantity must be >= 0", ErrValidation)
	}
	return nil
}

func (s *Service) mirror(ctx context.Context, p *models.Product, eventType string) {
	if s.ES != nil {
		if err := search.IndexProduct(ctx, s.ES, s.Index, p); err != nil {
			logging.FromContext(ctx).Warn("search index write failed", "error", err)
		}
	}
	if s.Events != nil {
		event := map[string]any{
			"type":        eventType,
			"product_id":  p.ID,
			"supplier_id": p.SupplierID,
			"price":       p.Price,
			"stock":       p.StockQuantity,
		}
		if err := s.Events.PublishEvent(ctx, events.TopicProductEvents, p.ID.String(), event); err != nil {
			logging.FromContext(ctx).Warn("event publish failed", "error", err)
		}
	}
}
