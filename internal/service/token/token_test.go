package token

import (
	"testing"

	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	return &Service{
		DB:            testutil.NewDB(t),
		JWTSecret:     []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	}
}

func TestAccessRoundTrip(t *testing.T) {
	svc := newService(t)
	id := uuid.New()

	raw, err := svc.SignAccess(id, models.ProfileSupplier)
	require.NoError(t, err)

	claims, err := svc.ParseAccess(raw)
	require.NoError(t, err)
	require.Equal(t, id.String(), claims["sub"])
	require.Equal(t, "supplier", claims["type"])
}

func TestParseAccessRejectsRefreshSecret(t *testing.T) {
	svc := newService(t)
	id := uuid.New()

	refresh, err := svc.SignRefresh(id, models.ProfileRestaurant)
	require.NoError(t, err)

	_, err = svc.ParseAccess(refresh)
	require.Error(t, err)
}

func TestRotate(t *testing.T) {
	svc := newService(t)
	id := uuid.New()

	refresh, err := svc.SignRefresh(id, models.ProfileRestaurant)
	require.NoError(t, err)
	require.NoError(t, svc.SaveRefresh(refresh, id))

	access, next, err := svc.Rotate(refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, next)

	claims, err := svc.ParseAccess(access)
	require.NoError(t, err)
	require.Equal(t, id.String(), claims["sub"])

	// The new refresh token was persisted and rotates in turn.
	_, _, err = svc.Rotate(next)
	require.NoError(t, err)

	// The consumed token was revoked and cannot be replayed.
	_, _, err = svc.Rotate(refresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateRejectsUnknownToken(t *testing.T) {
	svc := newService(t)
	id := uuid.New()

	// Signed but never persisted.
	refresh, err := svc.SignRefresh(id, models.ProfileRestaurant)
	require.NoError(t, err)

	_, _, err = svc.Rotate(refresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateRejectsRevokedToken(t *testing.T) {
	svc := newService(t)
	id := uuid.New()

	refresh, err := svc.SignRefresh(id, models.ProfileRestaurant)
	require.NoError(t, err)
	require.NoError(t, svc.SaveRefresh(refresh, id))
	require.NoError(t, svc.Revoke(refresh))

	_, _, err = svc.Rotate(refresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateRejectsAccessToken(t *testing.T) {
	svc := newService(t)
	id := uuid.New()

	access, err := svc.SignAccess(id, models.ProfileRestaurant)
	require.NoError(t, err)

	_, _, err = svc.Rotate(access)
	require.ErrorIs(t, err, ErrInvalidToken)
}
