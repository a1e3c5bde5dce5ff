package token

import (
	"errors"
	"net/http"
	"time"

	"github.com/atarasov/supplyhub/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context keys set for downstream handlers.
const (
	CtxProfileID   = "profileID"
	CtxProfileType = "profileType"
)

func CreateCookie(name, value, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// AutoRefresh authenticates the request from the access cookie, silently
// rotating the pair when the access token has expired but the refresh
// token is still good.
func (s *Service) AutoRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if asCookie, err := c.Cookie("accessToken"); err == nil {
			claims, err := s.ParseAccess(asCookie.Value)
			if err == nil {
				if err := setProfileContext(c, claims); err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
				}
				return next(c)
			}
			if !errors.Is(err, jwt.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
		}

		rfCookie, err := c.Cookie("refreshToken")
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		newAccess, newRefresh, err := s.Rotate(rfCookie.Value)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "cannot rotate token")
		}

		c.SetCookie(CreateCookie("accessToken", newAccess, "/", time.Now().Add(AccessTTL)))
		c.SetCookie(CreateCookie("refreshToken", newRefresh, "/", time.Now().Add(RefreshTTL)))

		claims, err := s.ParseAccess(newAccess)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		if err := setProfileContext(c, claims); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		return next(c)
	}
}

// RequireType gates a route group to one profile type.
func RequireType(want models.ProfileType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got, ok := c.Get(CtxProfileType).(models.ProfileType)
			if !ok || got != want {
				return echo.NewHTTPError(http.StatusForbidden, string(want)+" account required")
			}
			return next(c)
		}
	}
}

// ProfileID extracts the authenticated profile id set by AutoRefresh.
func ProfileID(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(CtxProfileID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

func setProfileContext(c echo.Context, claims jwt.MapClaims) error {
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return err
	}
	typ, _ := claims["type"].(string)
	c.Set(CtxProfileID, id)
	c.Set(CtxProfileType, models.ProfileType(typ))
	return nil
}
