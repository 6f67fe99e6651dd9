package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadito-app/mercadito-backend/pkg/config"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "mercadito-test",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	userID := uuid.New()
	vendorID := uuid.New()
	now := time.Now()

	signed, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID:   userID,
		Role:     enums.RoleVendor,
		VendorID: &vendorID,
		JTI:      "jti-123",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, signed)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.RoleVendor, claims.Role)
	require.NotNil(t, claims.VendorID)
	assert.Equal(t, vendorID, *claims.VendorID)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.Equal(t, "jti-123", claims.ID)
	assert.WithinDuration(t, now.Add(15*time.Minute), claims.ExpiresAt.Time, 2*time.Second)
}

func TestMintAccessTokenDefaultsJTI(t *testing.T) {
	t.Parallel()

	signed, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleCustomer,
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWTConfig(), signed)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
	assert.Nil(t, claims.VendorID)
}

func TestMintAccessTokenValidation(t *testing.T) {
	t.Parallel()

	base := testJWTConfig()
	userID := uuid.New()

	cases := []struct {
		name    string
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		{
			name:    "missing secret",
			cfg:     config.JWTConfig{Issuer: base.Issuer, ExpirationMinutes: 15},
			payload: AccessTokenPayload{UserID: userID, Role: enums.RoleCustomer},
		},
		{
			name:    "missing issuer",
			cfg:     config.JWTConfig{Secret: base.Secret, ExpirationMinutes: 15},
			payload: AccessTokenPayload{UserID: userID, Role: enums.RoleCustomer},
		},
		{
			name:    "invalid role",
			cfg:     base,
			payload: AccessTokenPayload{UserID: userID, Role: enums.Role("admin")},
		},
		{
			name:    "vendor without vendor id",
			cfg:     base,
			payload: AccessTokenPayload{UserID: userID, Role: enums.RoleVendor},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := MintAccessToken(tc.cfg, time.Now(), tc.payload)
			assert.Error(t, err)
		})
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	signed, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleCustomer,
	})
	require.NoError(t, err)

	other := testJWTConfig()
	other.Secret = "different-secret"
	_, err = ParseAccessToken(other, signed)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleCustomer,
	})
	require.NoError(t, err)

	cfg.Issuer = "someone-else"
	_, err = ParseAccessToken(cfg, signed)
	assert.Error(t, err)
}

func TestParseExpiredAccessTokenRecoversClaims(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	userID := uuid.New()
	signed, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		UserID: userID,
		Role:   enums.RoleCustomer,
		JTI:    "stale-jti",
	})
	require.NoError(t, err)

	claims, err := ParseExpiredAccessToken(cfg, signed)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "stale-jti", claims.ID)

	// Signature and issuer are still enforced.
	other := testJWTConfig()
	other.Secret = "different-secret"
	_, err = ParseExpiredAccessToken(other, signed)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleCustomer,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, signed)
	assert.Error(t, err)
}
