package order

import (
	"context"
	"testing"

	"github.com/atarasov/supplyhub/internal/events"
	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/statemachine"
	"github.com/atarasov/supplyhub/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type env struct {
	db         *gorm.DB
	svc        *Service
	pub        *testutil.FakePublisher
	badges     *testutil.FakeBadges
	restaurant *models.Profile
	supplier   *models.Profile
	productA   *models.Product
	productB   *models.Product
}

func newEnv(t *testing.T) *env {
	db := testutil.NewDB(t)
	pub := &testutil.FakePublisher{}
	badges := testutil.NewFakeBadges()

	e := &env{
		db:         db,
		pub:        pub,
		badges:     badges,
		svc:        &Service{DB: db, Events: pub, Badges: badges},
		restaurant: testutil.NewProfile(t, db, models.ProfileRestaurant, "bistro"),
		supplier:   testutil.NewProfile(t, db, models.ProfileSupplier, "farmco"),
	}
	e.productA = testutil.NewProduct(t, db, e.supplier.ID, "tomatoes", 50, 10)
	e.productB = testutil.NewProduct(t, db, e.supplier.ID, "basil", 30, 5)
	return e
}

func (e *env) createOrder(t *testing.T) *models.Order {
	t.Helper()
	o, err := e.svc.Create(context.Background(), CreateParams{
		RestaurantID: e.restaurant.ID,
		SupplierID:   e.supplier.ID,
		Items: []CreateItem{
			{ProductID: e.productA.ID, Quantity: 2},
			{ProductID: e.productB.ID, Quantity: 1},
		},
		ShippingAddress: models.ShippingAddress{Street: "1 Main St", City: "Pune", State: "MH", Zip: "411001"},
	})
	require.NoError(t, err)
	return o
}

func TestCreateOrderComputesTotalServerSide(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	// 2 x 50 + 1 x 30
	require.Equal(t, 130.0, o.TotalAmount)
	require.Equal(t, models.OrderPending, o.Status)
	require.Equal(t, models.PaymentPending, o.PaymentStatus)
	require.Equal(t, 1, o.Version)
	require.Len(t, o.Items, 2)
	require.Equal(t, 100.0, o.Items[0].LineTotal)
	require.Equal(t, "tomatoes", o.Items[0].Name)

	// Stock decremented.
	var pa models.Product
	require.NoError(t, e.db.First(&pa, "id = ?", e.productA.ID).Error)
	require.Equal(t, 8, pa.StockQuantity)

	// Notification created in the same transaction.
	var notifCount int64
	e.db.Model(&models.SupplierNotification{}).
		Where("supplier_id = ? AND order_id = ?", e.supplier.ID, o.ID).
		Count(&notifCount)
	require.EqualValues(t, 1, notifCount)

	// Badges and events.
	require.EqualValues(t, 1, e.badges.Unpaid[e.restaurant.ID])
	require.NotEmpty(t, e.pub.ByTopic(events.TopicOrderEvents))
}

func TestCreateOrderClearsCartRows(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Create(&models.CartItem{
		ProfileID: e.restaurant.ID, ProductID: e.productA.ID, Quantity: 2,
	}).Error)
	require.NoError(t, e.db.Create(&models.CartItem{
		ProfileID: e.restaurant.ID, ProductID: e.productB.ID, Quantity: 1,
	}).Error)

	e.createOrder(t)

	var remaining int64
	e.db.Model(&models.CartItem{}).Where("profile_id = ?", e.restaurant.ID).Count(&remaining)
	require.EqualValues(t, 0, remaining)
}

func TestCreateOrderValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, CreateParams{
		RestaurantID: e.restaurant.ID,
		SupplierID:   e.supplier.ID,
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = e.svc.Create(ctx, CreateParams{
		RestaurantID: e.restaurant.ID,
		SupplierID:   e.supplier.ID,
		Items:        []CreateItem{{ProductID: e.productA.ID, Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = e.svc.Create(ctx, CreateParams{
		RestaurantID: e.restaurant.ID,
		SupplierID:   e.supplier.ID,
		Items:        []CreateItem{{ProductID: uuid.New(), Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrderRejectsForeignProduct(t *testing.T) {
	e := newEnv(t)
	other := testutil.NewProfile(t, e.db, models.ProfileSupplier, "othersupplier")
	foreign := testutil.NewProduct(t, e.db, other.ID, "olives", 20, 10)

	_, err := e.svc.Create(context.Background(), CreateParams{
		RestaurantID: e.restaurant.ID,
		SupplierID:   e.supplier.ID,
		Items: []CreateItem{
			{ProductID: e.productA.ID, Quantity: 1},
			{ProductID: foreign.ID, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, ErrValidation)

	// Transaction rolled back: no order rows, stock untouched.
	var orders int64
	e.db.Model(&models.Order{}).Count(&orders)
	require.EqualValues(t, 0, orders)

	var pa models.Product
	require.NoError(t, e.db.First(&pa, "id = ?", e.productA.ID).Error)
	require.Equal(t, 10, pa.StockQuantity)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Create(context.Background(), CreateParams{
		RestaurantID: e.restaurant.ID,
		SupplierID:   e.supplier.ID,
		Items:        []CreateItem{{ProductID: e.productB.ID, Quantity: 6}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateStatusAccept(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	updated, err := e.svc.UpdateStatus(context.Background(), o.ID, models.OrderProcessing, statemachine.ActorSupplier)
	require.NoError(t, err)
	require.Equal(t, models.OrderProcessing, updated.Status)
	require.Equal(t, 2, updated.Version)

	var hist []models.OrderStatusHistory
	require.NoError(t, e.db.Where("order_id = ?", o.ID).Find(&hist).Error)
	require.Len(t, hist, 1)
	require.Equal(t, models.OrderPending, hist[0].FromStatus)
	require.Equal(t, models.OrderProcessing, hist[0].ToStatus)
	require.Equal(t, statemachine.ActorSupplier, hist[0].Actor)
}

func TestUpdateStatusRejectsIllegalEdge(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	_, err := e.svc.UpdateStatus(context.Background(), o.ID, models.OrderCompleted, statemachine.ActorSupplier)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Wrong actor on a legal edge is rejected too.
	_, err = e.svc.UpdateStatus(context.Background(), o.ID, models.OrderProcessing, statemachine.ActorRestaurant)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var fresh models.Order
	require.NoError(t, e.db.First(&fresh, "id = ?", o.ID).Error)
	require.Equal(t, models.OrderPending, fresh.Status)
	require.Equal(t, 1, fresh.Version)
}

func TestUpdateStatusCancelRestocks(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	_, err := e.svc.UpdateStatus(context.Background(), o.ID, models.OrderCancelled, statemachine.ActorRestaurant)
	require.NoError(t, err)

	var pa, pb models.Product
	require.NoError(t, e.db.First(&pa, "id = ?", e.productA.ID).Error)
	require.NoError(t, e.db.First(&pb, "id = ?", e.productB.ID).Error)
	require.Equal(t, 10, pa.StockQuantity)
	require.Equal(t, 5, pb.StockQuantity)
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.UpdateStatus(context.Background(), uuid.New(), models.OrderProcessing, statemachine.ActorSupplier)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApplyTransitionVersionConflict(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	var stale models.Order
	require.NoError(t, e.db.First(&stale, "id = ?", o.ID).Error)

	// Another writer wins the race.
	require.NoError(t, e.db.Model(&models.Order{}).
		Where("id = ?", o.ID).
		Update("version", stale.Version+1).Error)

	ok, err := e.svc.applyTransition(e.db, &stale, models.OrderProcessing, statemachine.ActorSupplier)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdatePaymentStatusConflictExhaustsRetries(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)
	_, err := e.svc.UpdateStatus(context.Background(), o.ID, models.OrderProcessing, statemachine.ActorSupplier)
	require.NoError(t, err)

	// Every write attempt loses the race: a callback bumps the version
	// between the service's read and its guarded update.
	require.NoError(t, e.db.Callback().Update().Before("gorm:update").Register("steal_version", func(tx *gorm.DB) {
		if tx.Statement.Table == "orders" {
			e.db.Session(&gorm.Session{NewDB: true, SkipHooks: true}).
				Exec("UPDATE orders SET version = version + 1 WHERE id = ?", o.ID)
		}
	}))
	defer e.db.Callback().Update().Remove("steal_version")

	_, err = e.svc.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentCompleted)
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdatePaymentStatusOnlyWhileProcessing(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	_, err := e.svc.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentCompleted)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.svc.UpdateStatus(context.Background(), o.ID, models.OrderProcessing, statemachine.ActorSupplier)
	require.NoError(t, err)

	updated, err := e.svc.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentCompleted)
	require.NoError(t, err)
	require.Equal(t, models.PaymentCompleted, updated.PaymentStatus)

	// Unpaid badge cleared on completion.
	require.EqualValues(t, 0, e.badges.Unpaid[e.restaurant.ID])
}

func TestUnpaidCountFallsBackToDatabase(t *testing.T) {
	e := newEnv(t)
	e.svc.Badges = nil
	e.createOrder(t)
	e.createOrder(t)

	n, err := e.svc.UnpaidCount(context.Background(), e.restaurant.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestListForRestaurantAndSupplier(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	rs, err := e.svc.ListForRestaurant(context.Background(), e.restaurant.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	require.Equal(t, o.ID, rs[0].ID)
	require.Len(t, rs[0].Items, 2)

	ss, err := e.svc.ListForSupplier(context.Background(), e.supplier.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, ss, 1)

	none, err := e.svc.ListForSupplier(context.Background(), uuid.New(), 10, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}
