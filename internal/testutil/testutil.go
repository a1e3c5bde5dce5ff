// Package testutil holds the shared fixtures for service and handler tests:
// an isolated in-memory database plus in-memory fakes for the event producer
// and badge counters.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/atarasov/supplyhub/internal/cache"
	"github.com/atarasov/supplyhub/internal/config"
	"github.com/atarasov/supplyhub/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated database private to the calling test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

type PublishedEvent struct {
	Topic string
	Key   string
	Event any
}

// FakePublisher records events instead of writing to Kafka.
type FakePublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

func (p *FakePublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *FakePublisher) ByTopic(topic string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedEvent
	for _, e := range p.Events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// FakeBadges is an in-memory stand-in for cache.Counters.
type FakeBadges struct {
	mu     sync.Mutex
	Unseen map[uuid.UUID]int64
	Unpaid map[uuid.UUID]int64
}

func NewFakeBadges() *FakeBadges {
	return &FakeBadges{
		Unseen: make(map[uuid.UUID]int64),
		Unpaid: make(map[uuid.UUID]int64),
	}
}

func (b *FakeBadges) IncrUnseen(ctx context.Context, supplierID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Unseen[supplierID]++
	return nil
}

func (b *FakeBadges) ResetUnseen(ctx context.Context, supplierID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.Unseen, supplierID)
	return nil
}

func (b *FakeBadges) UnseenCount(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.Unseen[supplierID]
	if !ok {
		return 0, cache.ErrMiss
	}
	return n, nil
}

func (b *FakeBadges) SetUnseen(ctx context.Context, supplierID uuid.UUID, n int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Unseen[supplierID] = n
	return nil
}

func (b *FakeBadges) IncrUnpaid(ctx context.Context, restaurantID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Unpaid[restaurantID]++
	return nil
}

func (b *FakeBadges) DecrUnpaid(ctx context.Context, restaurantID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Unpaid[restaurantID] > 0 {
		b.Unpaid[restaurantID]--
	}
	return nil
}

func (b *FakeBadges) UnpaidCount(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.Unpaid[restaurantID]
	if !ok {
		return 0, cache.ErrMiss
	}
	return n, nil
}

func (b *FakeBadges) SetUnpaid(ctx context.Context, restaurantID uuid.UUID, n int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Unpaid[restaurantID] = n
	return nil
}

// Seed helpers.

func NewProfile(t *testing.T, db *gorm.DB, typ models.ProfileType, name string) *models.Profile {
	t.Helper()
	p := &models.Profile{
		Type:         typ,
		BusinessName: name,
		ContactEmail: name + "@example.com",
		PasswordHash: "x",
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}
	return p
}

func NewProduct(t *testing.T, db *gorm.DB, supplierID uuid.UUID, name string, price float64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		SupplierID:    supplierID,
		Name:          name,
		Price:         price,
		StockQuantity: stock,
		Unit:          "kg",
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return p
}
