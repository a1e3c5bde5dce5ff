package handlers

import (
	"net/http"
	"strconv"

	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/service/catalog"
	"github.com/atarasov/supplyhub/internal/service/token"
	"github.com/atarasov/supplyhub/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ProductHandler struct {
	Catalog *catalog.Service
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	product, err := h.Catalog.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	filter := catalog.ListFilter{
		Category: c.QueryParam("category"),
		InStock:  c.QueryParam("in_stock") == "true",
	}
	if s := c.QueryParam("supplier_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid supplier id")
		}
		filter.SupplierID = id
	}

	total, products, err := h.Catalog.List(c.Request().Context(), filter, limit, offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total":    total,
		"page":     page,
		"size":     limit,
		"products": products,
	})
}

// MyProducts lists the authenticated supplier's own catalog.
func (h *ProductHandler) MyProducts(c echo.Context) error {
	supplierID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, products, err := h.Catalog.List(c.Request().Context(),
		catalog.ListFilter{SupplierID: supplierID}, limit, offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": products})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	supplierID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	var product models.Product
	if err := c.Bind(&product); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	product.ID = uuid.Nil
	product.SupplierID = supplierID

	created, err := h.Catalog.Create(c.Request().Context(), &product)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	supplierID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var updates catalog.UpdateParams
	if err := c.Bind(&updates); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Catalog.Update(c.Request().Context(), supplierID, id, updates)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	supplierID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	if err := h.Catalog.Delete(c.Request().Context(), supplierID, id); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
