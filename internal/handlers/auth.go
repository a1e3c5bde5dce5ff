package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/atarasov/supplyhub/internal/hash"
	"github.com/atarasov/supplyhub/internal/logging"
	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/service/token"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB     *gorm.DB
	Tokens *token.Service
}

type registerRequest struct {
	Email        string             `json:"email"`
	Password     string             `json:"password"`
	Type         models.ProfileType `json:"type"`
	BusinessName string             `json:"business_name"`
	Phone        string             `json:"phone"`
	Address      string             `json:"address"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" || req.BusinessName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email, password and business_name are required")
	}
	if req.Type != models.ProfileRestaurant && req.Type != models.ProfileSupplier {
		return echo.NewHTTPError(http.StatusBadRequest, "type must be restaurant or supplier")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("hash failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var existing models.Profile
	err = h.DB.WithContext(ctx).Where("contact_email = ?", req.Email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "profile already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("lookup failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	profile := models.Profile{
		Type:         req.Type,
		BusinessName: req.BusinessName,
		ContactEmail: req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		PasswordHash: pwHash,
	}
	if err := h.DB.WithContext(ctx).Create(&profile).Error; err != nil {
		l.Error("create failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("profile registered", "profile_id", profile.ID, "type", profile.Type)
	return c.JSON(http.StatusCreated, profile)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var profile models.Profile
	if err := h.DB.WithContext(ctx).Where("contact_email = ?", req.Email).First(&profile).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !hash.CheckPassword(profile.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	access, err := h.Tokens.SignAccess(profile.ID, profile.Type)
	if err != nil {
		l.Error("sign access failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	refresh, err := h.Tokens.SignRefresh(profile.ID, profile.Type)
	if err != nil {
		l.Error("sign refresh failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.Tokens.SaveRefresh(refresh, profile.ID); err != nil {
		l.Error("save refresh failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(token.CreateCookie("accessToken", access, "/", time.Now().Add(token.AccessTTL)))
	c.SetCookie(token.CreateCookie("refreshToken", refresh, "/", time.Now().Add(token.RefreshTTL)))

	l.Info("login", "profile_id", profile.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"profile":       profile,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	rfCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token missing")
	}
	if err := h.Tokens.Revoke(rfCookie.Value); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(token.CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(token.CreateCookie("refreshToken", "", "/", expired))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
