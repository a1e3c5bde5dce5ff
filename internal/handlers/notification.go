package handlers

import (
	"net/http"

	"github.com/atarasov/supplyhub/internal/logging"
	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/service/notification"
	"github.com/atarasov/supplyhub/internal/service/token"
	"github.com/atarasov/supplyhub/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type NotificationHandler struct {
	Notifications *notification.Service
}

func (h *NotificationHandler) List(c echo.Context) error {
	supplierID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	notifs, err := h.Notifications.List(c.Request().Context(), supplierID, limit, offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, notifs)
}

type decideRequest struct {
	Status models.NotificationStatus `json:"status"`
}

// Decide accepts or rejects the order behind a notification.
func (h *NotificationHandler) Decide(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification.decide")

	supplierID, err := token.ProfileID(c)
	if err != nil {
		return err
	}
	notifID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}

	var req decideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Status != models.NotificationAccepted && req.Status != models.NotificationRejected {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be accepted or rejected")
	}

	notif, err := h.Notifications.Decide(ctx, notifID,
		req.Status == models.NotificationAccepted, supplierID)
	if err != nil {
		l.Warn("decide failed", "notification_id", notifID, "error", err)
		return serviceError(err)
	}

	l.Info("notification decided", "notification_id", notifID, "status", notif.Status)
	return c.JSON(http.StatusOK, notif)
}

// MarkSeen clears the unseen badge; calling it twice is a no-op.
func (h *NotificationHandler) MarkSeen(c echo.Context) error {
	supplierID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	if err := h.Notifications.MarkSeen(c.Request().Context(), supplierID); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationHandler) UnseenCount(c echo.Context) error {
	supplierID, err := token.ProfileID(c)
	if err != nil {
		return err
	}

	n, err := h.Notifications.UnseenCount(c.Request().Context(), supplierID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}
