package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/atarasov/supplyhub/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Service signs and rotates the JWT pair. Access tokens carry the profile
// id and type; refresh tokens are persisted so they can be revoked.
type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

func (s *Service) SignAccess(profileID uuid.UUID, profileType models.ProfileType) (string, error) {
	claims := jwt.MapClaims{
		"sub":  profileID.String(),
		"type": string(profileType),
		"exp":  time.Now().Add(AccessTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.JWTSecret)
}

func (s *Service) SignRefresh(profileID uuid.UUID, profileType models.ProfileType) (string, error) {
	claims := jwt.MapClaims{
		"sub":  profileID.String(),
		"type": string(profileType),
		"exp":  time.Now().Add(RefreshTTL).Unix(),
		"typ":  "refresh",
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.RefreshSecret)
}

func (s *Service) SaveRefresh(token string, profileID uuid.UUID) error {
	row := models.RefreshToken{
		Token:     token,
		ProfileID: profileID,
		ExpiresAt: time.Now().Add(RefreshTTL).Unix(),
	}
	if err := s.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Service) Revoke(token string) error {
	err := s.DB.Model(&models.RefreshToken{}).
		Where("token = ?", token).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Rotate validates the refresh token against the store, revokes it and
// issues a fresh pair, persisting the new refresh token. A consumed token
// cannot be replayed.
func (s *Service) Rotate(rawToken string) (access, refresh string, err error) {
	claims, err := s.validateRefresh(rawToken)
	if err != nil {
		return "", "", err
	}
	if err := s.Revoke(rawToken); err != nil {
		return "", "", err
	}

	sub, _ := claims["sub"].(string)
	profileID, err := uuid.Parse(sub)
	if err != nil {
		return "", "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	profileType, _ := claims["type"].(string)

	access, err = s.SignAccess(profileID, models.ProfileType(profileType))
	if err != nil {
		return "", "", err
	}
	refresh, err = s.SignRefresh(profileID, models.ProfileType(profileType))
	if err != nil {
		return "", "", err
	}
	if err := s.SaveRefresh(refresh, profileID); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ParseAccess verifies an access token and returns its claims.
func (s *Service) ParseAccess(raw string) (jwt.MapClaims, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.JWTSecret, nil
	})
	if err != nil || !t.Valid {
		if err != nil {
			return nil, err
		}
		return nil, ErrInvalidToken
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) validateRefresh(rawToken string) (jwt.MapClaims, error) {
	t, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.RefreshSecret, nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: cannot parse claims", ErrInvalidToken)
	}
	if typ, ok := claims["typ"]; !ok || typ != "refresh" {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}

	var stored models.RefreshToken
	if err := s.DB.Where("token = ?", rawToken).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: refresh token unknown", ErrInvalidToken)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if stored.Revoked {
		return nil, fmt.Errorf("%w: refresh token revoked", ErrInvalidToken)
	}
	if time.Now().Unix() > stored.ExpiresAt {
		return nil, fmt.Errorf("%w: refresh token expired", ErrInvalidToken)
	}

	return claims, nil
}
