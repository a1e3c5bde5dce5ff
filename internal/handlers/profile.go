package handlers

import (
	"net/http"

	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/service/token"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ProfileHandler struct {
	DB *gorm.DB
}

func (h *ProfileHandler) Me(c echo.Context) error {
	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	var profile models.Profile
	if err := h.DB.WithContext(c.Request().Context()).First(&profile, "id = ?", profileID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}
	return c.JSON(http.StatusOK, profile)
}

type updateProfileRequest struct {
	BusinessName string `json:"business_name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	// Type is accepted in the body only to reject it explicitly.
	Type string `json:"type"`
}

func (h *ProfileHandler) Update(c echo.Context) error {
	profileID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Type != "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile type is immutable")
	}

	ctx := c.Request().Context()
	var profile models.Profile
	if err := h.DB.WithContext(ctx).First(&profile, "id = ?", profileID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}

	if req.BusinessName != "" {
		profile.BusinessName = req.BusinessName
	}
	if req.Phone != "" {
		profile.Phone = req.Phone
	}
	if req.Address != "" {
		profile.Address = req.Address
	}

	if err := h.DB.WithContext(ctx).Save(&profile).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, profile)
}

// ListSuppliers is the restaurant-facing supplier directory.
func (h *ProfileHandler) ListSuppliers(c echo.Context) error {
	var suppliers []models.Profile
	err := h.DB.WithContext(c.Request().Context()).
		Where("type = ?", models.ProfileSupplier).
		Order("business_name ASC").
		Find(&suppliers).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, suppliers)
}
