package handlers

import (
	"net/http"
	"strconv"

	"github.com/atarasov/supplyhub/internal/service/cart"
	"github.com/atarasov/supplyhub/internal/service/token"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CartHandler struct {
	Cart *cart.Service
}

func (h *CartHandler) GetCart(c echo.Context) error {
	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	items, err := h.Cart.Get(c.Request().Context(), profileID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, items)
}

type addToCartRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	var req addToCartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	item, err := h.Cart.Add(c.Request().Context(), profileID, req.ProductID, req.Quantity)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, item)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) SetQuantity(c echo.Context) error {
	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cart item id")
	}

	var req setQuantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	item, err := h.Cart.SetQuantity(c.Request().Context(), profileID, uint(itemID), req.Quantity)
	if err != nil {
		return serviceError(err)
	}
	if item == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cart item id")
	}

	if err := h.Cart.Remove(c.Request().Context(), profileID, uint(itemID)); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	if err := h.Cart.Clear(c.Request().Context(), profileID); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
