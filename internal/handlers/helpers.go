package handlers

import (
	"errors"
	"net/http"

	"github.com/atarasov/supplyhub/internal/service/cart"
	"github.com/atarasov/supplyhub/internal/service/catalog"
	"github.com/atarasov/supplyhub/internal/service/notification"
	"github.com/atarasov/supplyhub/internal/service/order"
	"github.com/atarasov/supplyhub/internal/service/payment"
	"github.com/atarasov/supplyhub/internal/statemachine"
	"github.com/labstack/echo/v4"
)

// serviceError maps service sentinels onto HTTP statuses.
func serviceError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, cart.ErrValidation),
		errors.Is(err, catalog.ErrValidation),
		errors.Is(err, payment.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, notification.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrForbidden),
		errors.Is(err, notification.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, statemachine.ErrInvalidTransition),
		errors.Is(err, order.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
