package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atarasov/supplyhub/internal/cache"
	"github.com/atarasov/supplyhub/internal/logging"
	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/statemachine"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrValidation        = errors.New("validation")         // 400
	ErrNotFound          = errors.New("not found")          // 404
	ErrInvalidTransition = statemachine.ErrInvalidTransition // 409
	ErrConflict          = errors.New("concurrent modification") // 409
)

// Versioned writes are retried this many times before giving up with
// ErrConflict.
const (
	statusRetries = 3
	retryBackoff  = 100 * time.Millisecond
)

// Publisher is satisfied by events.Producer.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// Badges is satisfied by cache.Counters.
type Badges interface {
	IncrUnseen(ctx context.Context, supplierID uuid.UUID) error
	IncrUnpaid(ctx context.Context, restaurantID uuid.UUID) error
	DecrUnpaid(ctx context.Context, restaurantID uuid.UUID) error
	UnpaidCount(ctx context.Context, restaurantID uuid.UUID) (int64, error)
	SetUnpaid(ctx context.Context, restaurantID uuid.UUID, n int64) error
}

// Service owns every mutation of order rows. Other components read orders or
// call into it; nothing else writes status or payment_status.
type Service struct {
	DB     *gorm.DB
	Events Publisher
	Badges Badges

	// Topic for post-commit events; defaults to "order_events".
	Topic string
}

type CreateItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type CreateParams struct {
	RestaurantID    uuid.UUID
	SupplierID      uuid.UUID
	Items           []CreateItem
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
}

// Create inserts the order header, its items, and the supplier notification
// in one transaction, decrementing stock and clearing the restaurant's cart
// rows for the ordered products. Unit prices come from the products table,
// never from the caller.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Order, error) {
	if len(p.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	if p.SupplierID == uuid.Nil {
		return nil, fmt.Errorf("%w: supplier_id required", ErrValidation)
	}
	for _, it := range p.Items {
		if it.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = "online"
	}

	order := &models.Order{
		RestaurantID:    p.RestaurantID,
		SupplierID:      p.SupplierID,
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentPending,
		PaymentMethod:   p.PaymentMethod,
		ShippingAddress: p.ShippingAddress,
		Version:         1,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total float64
		var items []models.OrderItem
		productIDs := make([]uuid.UUID, 0, len(p.Items))

		for _, it := range p.Items {
			var product models.Product
			if err := tx.First(&product, "id = ?", it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %s not found", ErrNotFound, it.ProductID)
				}
				return err
			}
			if product.SupplierID != p.SupplierID {
				return fmt.Errorf("%w: product %s does not belong to supplier %s",
					ErrValidation, product.ID, p.SupplierID)
			}

			// Guarded decrement doubles as the stock check.
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock_quantity >= ?", product.ID, it.Quantity).
				Update("stock_quantity", gorm.Expr("stock_quantity - ?", it.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: insufficient stock for %q", ErrValidation, product.Name)
			}

			line := float64(it.Quantity) * product.Price
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Quantity:  it.Quantity,
				UnitPrice: product.Price,
				LineTotal: line,
			})
			total += line
			productIDs = append(productIDs, product.ID)
		}

		order.TotalAmount = total
		order.Items = items
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		notif := models.SupplierNotification{
			SupplierID: p.SupplierID,
			OrderID:    order.ID,
			Status:     models.NotificationPending,
		}
		if err := tx.Create(&notif).Error; err != nil {
			return err
		}

		return tx.Where("profile_id = ? AND product_id IN ?", p.RestaurantID, productIDs).
			Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, order.ID.String(), map[string]any{
		"type":          "order_created",
		"order_id":      order.ID,
		"restaurant_id": order.RestaurantID,
		"supplier_id":   order.SupplierID,
		"total_amount":  order.TotalAmount,
	})
	if s.Badges != nil {
		if err := s.Badges.IncrUnpaid(ctx, order.RestaurantID); err != nil {
			logging.FromContext(ctx).Warn("unpaid counter incr failed", "error", err)
		}
		if err := s.Badges.IncrUnseen(ctx, order.SupplierID); err != nil {
			logging.FromContext(ctx).Warn("unseen counter incr failed", "error", err)
		}
	}

	return order, nil
}

// UpdateStatus moves an order along the status graph using optimistic
// concurrency: read, validate, write guarded by the version counter, retry
// on conflict.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus, actor string) (*models.Order, error) {
	for attempt := 0; attempt < statusRetries; attempt++ {
		var order models.Order
		if err := s.DB.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
			}
			return nil, err
		}

		if err := statemachine.CanTransition(order.Status, next, actor); err != nil {
			return nil, err
		}

		applied := false
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.applyTransition(tx, &order, next, actor)
			if err != nil {
				return err
			}
			applied = ok
			return nil
		})
		if err != nil {
			return nil, err
		}

		if applied {
			order.Status = next
			order.Version++
			s.publish(ctx, order.ID.String(), map[string]any{
				"type":     "order_status_changed",
				"order_id": order.ID,
				"status":   next,
				"actor":    actor,
			})
			return &order, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
	return nil, fmt.Errorf("%w: order %s", ErrConflict, orderID)
}

// TransitionTx performs one guarded transition attempt inside the caller's
// transaction. Used by the notification relay so decision and order status
// commit together; there is no retry here, a version conflict aborts the
// caller's transaction with ErrConflict.
func (s *Service) TransitionTx(tx *gorm.DB, orderID uuid.UUID, next models.OrderStatus, actor string) (*models.Order, error) {
	var order models.Order
	if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}

	if err := statemachine.CanTransition(order.Status, next, actor); err != nil {
		return nil, err
	}

	ok, err := s.applyTransition(tx, &order, next, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrConflict, orderID)
	}
	order.Status = next
	order.Version++
	return &order, nil
}

// applyTransition issues the versioned write plus its side effects (history
// row, restock on cancellation). Returns false on a version conflict.
func (s *Service) applyTransition(tx *gorm.DB, order *models.Order, next models.OrderStatus, actor string) (bool, error) {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"status":  next,
			"version": order.Version + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	hist := models.OrderStatusHistory{
		OrderID:    order.ID,
		FromStatus: order.Status,
		ToStatus:   next,
		Actor:      actor,
	}
	if err := tx.Create(&hist).Error; err != nil {
		return false, err
	}

	if next == models.OrderCancelled {
		var items []models.OrderItem
		if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			return false, err
		}
		for _, it := range items {
			err := tx.Model(&models.Product{}).
				Where("id = ?", it.ProductID).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", it.Quantity)).Error
			if err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// UpdatePaymentStatus records the gateway outcome. Only legal while the
// order is processing; uses the same versioned write as status changes.
// The badge-counter refresh on completion is advisory, its failure never
// rolls back the payment write.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, next models.PaymentStatus) (*models.Order, error) {
	for attempt := 0; attempt < statusRetries; attempt++ {
		var order models.Order
		if err := s.DB.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
			}
			return nil, err
		}

		if err := statemachine.CanTransitionPayment(order.Status, order.PaymentStatus, next); err != nil {
			return nil, err
		}

		res := s.DB.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(map[string]any{
				"payment_status": next,
				"version":        order.Version + 1,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			order.PaymentStatus = next
			order.Version++
			s.publish(ctx, order.ID.String(), map[string]any{
				"type":           "order_payment_changed",
				"order_id":       order.ID,
				"payment_status": next,
			})
			if next == models.PaymentCompleted && s.Badges != nil {
				if err := s.Badges.DecrUnpaid(ctx, order.RestaurantID); err != nil {
					logging.FromContext(ctx).Warn("unpaid counter decr failed", "error", err)
				}
			}
			return &order, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
	return nil, fmt.Errorf("%w: order %s", ErrConflict, orderID)
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

// ListForRestaurant returns the buyer's orders, newest first.
func (s *Service) ListForRestaurant(ctx context.Context, restaurantID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("restaurant_id = ?", restaurantID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&orders).Error
	return orders, err
}

// ListForSupplier returns the seller's incoming orders, newest first.
func (s *Service) ListForSupplier(ctx context.Context, supplierID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&orders).Error
	return orders, err
}

// UnpaidCount serves the restaurant's unpaid-orders badge from the counter
// cache, falling back to a row count on a miss.
func (s *Service) UnpaidCount(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	if s.Badges != nil {
		n, err := s.Badges.UnpaidCount(ctx, restaurantID)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			logging.FromContext(ctx).Warn("unpaid counter read failed", "error", err)
		}
	}

	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("restaurant_id = ? AND payment_status <> ? AND status <> ?",
			restaurantID, models.PaymentCompleted, models.OrderCancelled).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	if s.Badges != nil {
		if err := s.Badges.SetUnpaid(ctx, restaurantID, n); err != nil {
			logging.FromContext(ctx).Warn("unpaid counter prime failed", "error", err)
		}
	}
	return n, nil
}

// History returns the audit trail of applied transitions.
func (s *Service) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var hist []models.OrderStatusHistory
	err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).
		Order("created_at ASC").Find(&hist).Error
	return hist, err
}

func (s *Service) publish(ctx context.Context, key string, event map[string]any) {
	if s.Events == nil {
		return
	}
	topic := s.Topic
	if topic == "" {
		topic = "order_events"
	}
	if err := s.Events.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("event publish failed", "topic", topic, "error", err)
	}
}
