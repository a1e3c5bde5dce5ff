package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/atarasov/supplyhub/internal/cache"
	"github.com/atarasov/supplyhub/internal/events"
	"github.com/atarasov/supplyhub/internal/logging"
	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/service/order"
	"github.com/atarasov/supplyhub/internal/statemachine"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = statemachine.ErrInvalidTransition
	ErrForbidden         = errors.New("forbidden")
)

// Publisher is satisfied by events.Producer.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// Badges is satisfied by cache.Counters.
type Badges interface {
	IncrUnseen(ctx context.Context, supplierID uuid.UUID) error
	ResetUnseen(ctx context.Context, supplierID uuid.UUID) error
	UnseenCount(ctx context.Context, supplierID uuid.UUID) (int64, error)
	SetUnseen(ctx context.Context, supplierID uuid.UUID, n int64) error
}

// Service tracks per-order supplier notifications: the accept/reject
// decision and the independent seen flag.
type Service struct {
	DB     *gorm.DB
	Orders *order.Service
	Events Publisher
	Badges Badges
}

// Notify records a pending notification for the supplier. The unique
// (supplier_id, order_id) index deduplicates repeated delivery: a second
// insert for the same pair is dropped, not duplicated. Order creation
// already notifies inside its own transaction; this is the standalone path
// for re-delivery jobs.
func (s *Service) Notify(ctx context.Context, supplierID, orderID uuid.UUID) (*models.SupplierNotification, error) {
	notif := models.SupplierNotification{
		SupplierID: supplierID,
		OrderID:    orderID,
		Status:     models.NotificationPending,
	}
	res := s.DB.WithContext(ctx).
		Where("supplier_id = ? AND order_id = ?", supplierID, orderID).
		FirstOrCreate(&notif)
	if res.Error != nil {
		// Two racing deliveries can both miss the read; the loser's insert
		// trips the unique index. The winner's row is the dedup result.
		var existing models.SupplierNotification
		err := s.DB.WithContext(ctx).
			Where("supplier_id = ? AND order_id = ?", supplierID, orderID).
			First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		return nil, res.Error
	}

	if res.RowsAffected > 0 {
		s.publish(ctx, notif.ID.String(), map[string]any{
			"type":            "notification_created",
			"notification_id": notif.ID,
			"supplier_id":     supplierID,
			"order_id":        orderID,
		})
		if s.Badges != nil {
			if err := s.Badges.IncrUnseen(ctx, supplierID); err != nil {
				logging.FromContext(ctx).Warn("unseen counter incr failed", "error", err)
			}
		}
	}
	return &notif, nil
}

// Decide applies the supplier's accept/reject decision and the matching
// order transition in one transaction: both commit or neither does.
// Decisions are one-way; deciding an already-decided notification fails
// with ErrInvalidTransition.
func (s *Service) Decide(ctx context.Context, notificationID uuid.UUID, accepted bool, supplierID uuid.UUID) (*models.SupplierNotification, error) {
	var notif models.SupplierNotification

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&notif, "id = ?", notificationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: notification %s", ErrNotFound, notificationID)
			}
			return err
		}
		if notif.SupplierID != supplierID {
			return fmt.Errorf("%w: notification belongs to another supplier", ErrForbidden)
		}
		if notif.Status != models.NotificationPending {
			return fmt.Errorf("%w: notification already %s", ErrInvalidTransition, notif.Status)
		}

		decision := models.NotificationRejected
		next := models.OrderCancelled
		if accepted {
			decision = models.NotificationAccepted
			next = models.OrderProcessing
		}

		// Guard on pending so two concurrent decisions cannot both win.
		res := tx.Model(&models.SupplierNotification{}).
			Where("id = ? AND status = ?", notif.ID, models.NotificationPending).
			Update("status", decision)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: notification already decided", ErrInvalidTransition)
		}

		if _, err := s.Orders.TransitionTx(tx, notif.OrderID, next, statemachine.ActorSupplier); err != nil {
			return err
		}

		notif.Status = decision
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notif.ID.String(), map[string]any{
		"type":            "notification_decided",
		"notification_id": notif.ID,
		"order_id":        notif.OrderID,
		"status":          notif.Status,
	})
	return &notif, nil
}

// MarkSeen flips the read flag on all of the supplier's unseen rows. It is
// idempotent and never touches the decision status.
func (s *Service) MarkSeen(ctx context.Context, supplierID uuid.UUID) error {
	err := s.DB.WithContext(ctx).Model(&models.SupplierNotification{}).
		Where("supplier_id = ? AND seen = ?", supplierID, false).
		Update("seen", true).Error
	if err != nil {
		return err
	}
	if s.Badges != nil {
		if err := s.Badges.ResetUnseen(ctx, supplierID); err != nil {
			logging.FromContext(ctx).Warn("unseen counter reset failed", "error", err)
		}
	}
	return nil
}

// List returns the supplier's notifications, newest first, with order and
// item details preloaded.
func (s *Service) List(ctx context.Context, supplierID uuid.UUID, limit, offset int) ([]models.SupplierNotification, error) {
	var notifs []models.SupplierNotification
	err := s.DB.WithContext(ctx).
		Preload("Order").Preload("Order.Items").
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&notifs).Error
	return notifs, err
}

// UnseenCount serves the badge number from the counter cache, falling back
// to a row count and re-priming the cache on a miss.
func (s *Service) UnseenCount(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	if s.Badges != nil {
		n, err := s.Badges.UnseenCount(ctx, supplierID)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			logging.FromContext(ctx).Warn("unseen counter read failed", "error", err)
		}
	}

	var n int64
	err := s.DB.WithContext(ctx).Model(&models.SupplierNotification{}).
		Where("supplier_id = ? AND seen = ?", supplierID, false).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	if s.Badges != nil {
		if err := s.Badges.SetUnseen(ctx, supplierID, n); err != nil {
			logging.FromContext(ctx).Warn("unseen counter prime failed", "error", err)
		}
	}
	return n, nil
}

func (s *Service) publish(ctx context.Context, key string, event map[string]any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishEvent(ctx, events.TopicNotificationEvents, key, event); err != nil {
		logging.FromContext(ctx).Warn("event publish failed", "topic", events.TopicNotificationEvents, "error", err)
	}
}
