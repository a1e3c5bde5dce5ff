package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/service/order"
	"github.com/atarasov/supplyhub/internal/service/payment"
	"github.com/atarasov/supplyhub/internal/service/token"
	"github.com/atarasov/supplyhub/internal/statemachine"
	"github.com/atarasov/supplyhub/internal/testutil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type orderEnv struct {
	e          *echo.Echo
	db         *gorm.DB
	handler    *OrderHandler
	orders     *order.Service
	restaurant *models.Profile
	supplier   *models.Profile
	product    *models.Product
}

func newOrderEnv(t *testing.T, failureRate float64) *orderEnv {
	db := testutil.NewDB(t)
	orders := &order.Service{DB: db, Events: &testutil.FakePublisher{}, Badges: testutil.NewFakeBadges()}

	env := &orderEnv{
		e:          echo.New(),
		db:         db,
		orders:     orders,
		handler:    &OrderHandler{Orders: orders, Gateway: payment.NewStubGateway(failureRate, 1)},
		restaurant: testutil.NewProfile(t, db, models.ProfileRestaurant, "bistro"),
		supplier:   testutil.NewProfile(t, db, models.ProfileSupplier, "farmco"),
	}
	env.product = testutil.NewProduct(t, db, env.supplier.ID, "tomatoes", 50, 10)
	return env
}

// as builds an echo context authenticated as the given profile.
func (env *orderEnv) as(profileID uuid.UUID, req *http.Request, rec *httptest.ResponseRecorder) echo.Context {
	c := env.e.NewContext(req, rec)
	c.Set(token.CtxProfileID, profileID)
	return c
}

func (env *orderEnv) createOrder(t *testing.T) *models.Order {
	t.Helper()
	body := fmt.Sprintf(`{"supplier_id":%q,"items":[{"product_id":%q,"quantity":2}],"shipping_address":{"street":"1 Main St","city":"Pune","zip":"411001"}}`,
		env.supplier.ID, env.product.ID)
	req, rec := jsonRequest(http.MethodPost, "/api/v1/restaurant/orders", body)
	c := env.as(env.restaurant.ID, req, rec)
	require.NoError(t, env.handler.CreateOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var o models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	return &o
}

func (env *orderEnv) accept(t *testing.T, orderID uuid.UUID) {
	t.Helper()
	_, err := env.orders.UpdateStatus(context.Background(), orderID, models.OrderProcessing, statemachine.ActorSupplier)
	require.NoError(t, err)
}

func withParam(c echo.Context, name, value string) {
	c.SetParamNames(name)
	c.SetParamValues(value)
}

func TestCreateOrderHandler(t *testing.T) {
	env := newOrderEnv(t, 0)
	o := env.createOrder(t)

	require.Equal(t, 100.0, o.TotalAmount)
	require.Equal(t, models.OrderPending, o.Status)
	require.Equal(t, env.restaurant.ID, o.RestaurantID)
	require.Len(t, o.Items, 1)
}

func TestGetOrderOwnership(t *testing.T) {
	env := newOrderEnv(t, 0)
	o := env.createOrder(t)
	stranger := testutil.NewProfile(t, env.db, models.ProfileRestaurant, "diner")

	req, rec := jsonRequest(http.MethodGet, "/api/v1/orders/"+o.ID.String(), "")
	c := env.as(env.supplier.ID, req, rec)
	withParam(c, "id", o.ID.String())
	require.NoError(t, env.handler.GetOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	req, rec = jsonRequest(http.MethodGet, "/api/v1/orders/"+o.ID.String(), "")
	c = env.as(stranger.ID, req, rec)
	withParam(c, "id", o.ID.String())
	err := env.handler.GetOrder(c)
	require.Equal(t, http.StatusForbidden, httpCode(t, err))
}

func TestUpdateStatusHandler(t *testing.T) {
	env := newOrderEnv(t, 0)
	o := env.createOrder(t)

	// The supplier accepts.
	req, rec := jsonRequest(http.MethodPatch, "/api/v1/orders/"+o.ID.String()+"/status", `{"status":"processing"}`)
	c := env.as(env.supplier.ID, req, rec)
	withParam(c, "id", o.ID.String())
	require.NoError(t, env.handler.UpdateStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, models.OrderProcessing, updated.Status)

	// The restaurant cannot complete.
	req, rec = jsonRequest(http.MethodPatch, "/api/v1/orders/"+o.ID.String()+"/status", `{"status":"completed"}`)
	c = env.as(env.restaurant.ID, req, rec)
	withParam(c, "id", o.ID.String())
	err := env.handler.UpdateStatus(c)
	require.Equal(t, http.StatusConflict, httpCode(t, err))
}

func TestUpdateStatusHandlerStranger(t *testing.T) {
	env := newOrderEnv(t, 0)
	o := env.createOrder(t)
	stranger := testutil.NewProfile(t, env.db, models.ProfileSupplier, "rival")

	req, rec := jsonRequest(http.MethodPatch, "/api/v1/orders/"+o.ID.String()+"/status", `{"status":"processing"}`)
	c := env.as(stranger.ID, req, rec)
	withParam(c, "id", o.ID.String())
	err := env.handler.UpdateStatus(c)
	require.Equal(t, http.StatusForbidden, httpCode(t, err))
}

func TestPayHandlerSuccess(t *testing.T) {
	env := newOrderEnv(t, 1) // every non-test card would decline
	o := env.createOrder(t)
	env.accept(t, o.ID)

	body := `{"card_number":"4111111111111111","expiry_date":"12/27","cvv":"123","name":"A Tester"}`
	req, rec := jsonRequest(http.MethodPost, "/api/v1/restaurant/orders/"+o.ID.String()+"/pay", body)
	c := env.as(env.restaurant.ID, req, rec)
	withParam(c, "id", o.ID.String())
	require.NoError(t, env.handler.Pay(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success       bool         `json:"success"`
		TransactionID string       `json:"transaction_id"`
		Order         models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.TransactionID)
	require.Equal(t, models.PaymentCompleted, resp.Order.PaymentStatus)
}

func TestPayHandlerDeclined(t *testing.T) {
	env := newOrderEnv(t, 1)
	o := env.createOrder(t)
	env.accept(t, o.ID)

	body := `{"card_number":"5555444433332222","expiry_date":"12/27","cvv":"123","name":"A Tester"}`
	req, rec := jsonRequest(http.MethodPost, "/api/v1/restaurant/orders/"+o.ID.String()+"/pay", body)
	c := env.as(env.restaurant.ID, req, rec)
	withParam(c, "id", o.ID.String())
	require.NoError(t, env.handler.Pay(c))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	// The order stays payable after a recorded decline.
	var fresh models.Order
	require.NoError(t, env.db.First(&fresh, "id = ?", o.ID).Error)
	require.Equal(t, models.PaymentFailed, fresh.PaymentStatus)
	require.Equal(t, models.OrderProcessing, fresh.Status)
}

func TestPayHandlerRejectsPendingOrder(t *testing.T) {
	env := newOrderEnv(t, 0)
	o := env.createOrder(t)

	body := `{"card_number":"4111111111111111","expiry_date":"12/27","cvv":"123","name":"A Tester"}`
	req, rec := jsonRequest(http.MethodPost, "/api/v1/restaurant/orders/"+o.ID.String()+"/pay", body)
	c := env.as(env.restaurant.ID, req, rec)
	withParam(c, "id", o.ID.String())
	err := env.handler.Pay(c)
	require.Equal(t, http.StatusConflict, httpCode(t, err))
}

func TestPayHandlerBadCard(t *testing.T) {
	env := newOrderEnv(t, 0)
	o := env.createOrder(t)
	env.accept(t, o.ID)

	body := `{"card_number":"1234","expiry_date":"12/27","cvv":"123","name":"A Tester"}`
	req, rec := jsonRequest(http.MethodPost, "/api/v1/restaurant/orders/"+o.ID.String()+"/pay", body)
	c := env.as(env.restaurant.ID, req, rec)
	withParam(c, "id", o.ID.String())
	err := env.handler.Pay(c)
	require.Equal(t, http.StatusBadRequest, httpCode(t, err))
}

func TestHistoryHandler(t *testing.T) {
	env := newOrderEnv(t, 0)
	o := env.createOrder(t)
	env.accept(t, o.ID)

	req, rec := jsonRequest(http.MethodGet, "/api/v1/orders/"+o.ID.String()+"/history", "")
	c := env.as(env.restaurant.ID, req, rec)
	withParam(c, "id", o.ID.String())
	require.NoError(t, env.handler.History(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var hist []models.OrderStatusHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist, 1)
	require.Equal(t, models.OrderProcessing, hist[0].ToStatus)
}

func TestListOrdersHandler(t *testing.T) {
	env := newOrderEnv(t, 0)
	env.createOrder(t)

	req, rec := jsonRequest(http.MethodGet, "/api/v1/restaurant/orders", "")
	c := env.as(env.restaurant.ID, req, rec)
	require.NoError(t, env.handler.ListRestaurantOrders(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)

	req, rec = jsonRequest(http.MethodGet, "/api/v1/supplier/orders", "")
	c = env.as(env.supplier.ID, req, rec)
	require.NoError(t, env.handler.ListSupplierOrders(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	env := newOrderEnv(t, 0)

	req, rec := jsonRequest(http.MethodGet, "/api/v1/restaurant/orders", "")
	c := env.e.NewContext(req, rec)
	err := env.handler.ListRestaurantOrders(c)
	require.Equal(t, http.StatusUnauthorized, httpCode(t, err))
}
