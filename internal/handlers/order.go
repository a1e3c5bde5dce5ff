package handlers

import (
	"errors"
	"net/http"

	"github.com/atarasov/supplyhub/internal/logging"
	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/service/order"
	"github.com/atarasov/supplyhub/internal/service/payment"
	"github.com/atarasov/supplyhub/internal/service/token"
	"github.com/atarasov/supplyhub/internal/statemachine"
	"github.com/atarasov/supplyhub/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	Orders  *order.Service
	Gateway payment.Gateway
}

type createOrderRequest struct {
	SupplierID      uuid.UUID              `json:"supplier_id"`
	Items           []order.CreateItem     `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	restaurantID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	created, err := h.Orders.Create(ctx, order.CreateParams{
		RestaurantID:    restaurantID,
		SupplierID:      req.SupplierID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		l.Warn("create order failed", "error", err)
		return serviceError(err)
	}

	l.Info("order created", "order_id", created.ID, "total", created.TotalAmount)
	return c.JSON(http.StatusCreated, created)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	o, err := h.Orders.Get(c.Request().Context(), orderID)
	if err != nil {
		return serviceError(err)
	}
	if o.RestaurantID != profileID && o.SupplierID != profileID {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) ListRestaurantOrders(c echo.Context) error {
	restaurantID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	orders, err := h.Orders.ListForRestaurant(c.Request().Context(), restaurantID, limit, offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListSupplierOrders(c echo.Context) error {
	supplierID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	orders, err := h.Orders.ListForSupplier(c.Request().Context(), supplierID, limit, offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

// UpdateStatus moves an order along the lifecycle. The acting role comes
// from the authenticated profile type, and ownership is checked against
// the matching side of the order.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		return serviceError(err)
	}

	var actor string
	switch profileID {
	case o.SupplierID:
		actor = statemachine.ActorSupplier
	case o.RestaurantID:
		actor = statemachine.ActorRestaurant
	default:
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}

	updated, err := h.Orders.UpdateStatus(ctx, orderID, req.Status, actor)
	if err != nil {
		l.Warn("status update failed", "order_id", orderID, "status", req.Status, "error", err)
		return serviceError(err)
	}

	l.Info("status updated", "order_id", orderID, "status", updated.Status)
	return c.JSON(http.StatusOK, updated)
}

func (h *OrderHandler) History(c echo.Context) error {
	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	o, err := h.Orders.Get(c.Request().Context(), orderID)
	if err != nil {
		return serviceError(err)
	}
	if o.RestaurantID != profileID && o.SupplierID != profileID {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}

	hist, err := h.Orders.History(c.Request().Context(), orderID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, hist)
}

type payRequest struct {
	payment.Card
}

// Pay charges the gateway and records the outcome on the order. A gateway
// decline is reported back with the order left payable.
func (h *OrderHandler) Pay(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.pay")

	restaurantID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req payRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		return serviceError(err)
	}
	if o.RestaurantID != restaurantID {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}
	if err := statemachine.CanTransitionPayment(o.Status, o.PaymentStatus, models.PaymentCompleted); err != nil {
		return serviceError(err)
	}

	txnID, chargeErr := h.Gateway.Charge(ctx, req.Card, o.TotalAmount)
	if chargeErr != nil {
		if errors.Is(chargeErr, payment.ErrValidation) {
			return serviceError(chargeErr)
		}
		if !errors.Is(chargeErr, payment.ErrDeclined) {
			l.Error("gateway error", "order_id", orderID, "error", chargeErr)
			return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
		}

		if _, err := h.Orders.UpdatePaymentStatus(ctx, orderID, models.PaymentFailed); err != nil {
			l.Warn("payment status update failed", "order_id", orderID, "error", err)
		}
		return c.JSON(http.StatusPaymentRequired, echo.Map{
			"success": false,
			"error":   "payment declined, please try again",
		})
	}

	updated, err := h.Orders.UpdatePaymentStatus(ctx, orderID, models.PaymentCompleted)
	if err != nil {
		l.Error("payment recorded but status update failed", "order_id", orderID, "txn_id", txnID, "error", err)
		return serviceError(err)
	}

	l.Info("payment completed", "order_id", orderID, "txn_id", txnID)
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"transaction_id": txnID,
		"order":          updated,
	})
}

// UnpaidCount serves the restaurant's badge counter.
func (h *OrderHandler) UnpaidCount(c echo.Context) error {
	restaurantID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	n, err := h.Orders.UnpaidCount(c.Request().Context(), restaurantID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}
