package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/atarasov/supplyhub/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
)

// Service is the server-side cart: one row per (profile, product).
type Service struct {
	DB *gorm.DB
}

func (s *Service) Get(ctx context.Context, profileID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.DB.WithContext(ctx).Preload("Product").
		Where("profile_id = ?", profileID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// Add upserts quantity onto the profile's row for the product.
func (s *Service) Add(ctx context.Context, profileID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if quantity < 1 {
		quantity = 1
	}

	var product models.Product
	if err := s.DB.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
		}
		return nil, err
	}

	var item models.CartItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("profile_id = ? AND product_id = ?", profileID, productID).First(&item).Error
		switch {
		case err == nil:
			item.Quantity += quantity
			return tx.Save(&item).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{ProfileID: profileID, ProductID: productID, Quantity: quantity}
			return tx.Create(&item).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	item.Product = &product
	return &item, nil
}

// SetQuantity sets the row's quantity; zero or less removes the row.
func (s *Service) SetQuantity(ctx context.Context, profileID uuid.UUID, itemID uint, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := s.DB.WithContext(ctx).
		Where("id = ? AND profile_id = ?", itemID, profileID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
		}
		return nil, err
	}

	if quantity <= 0 {
		if err := s.DB.WithContext(ctx).Delete(&item).Error; err != nil {
			return nil, err
		}
		return nil, nil
	}

	item.Quantity = quantity
	if err := s.DB.WithContext(ctx).Save(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) Remove(ctx context.Context, profileID uuid.UUID, itemID uint) error {
	res := s.DB.WithContext(ctx).
		Where("id = ? AND profile_id = ?", itemID, profileID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, profileID uuid.UUID) error {
	return s.DB.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Delete(&models.CartItem{}).Error
}
