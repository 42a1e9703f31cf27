package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/requestcontext"
)

var (
	jwtService = NewJWTService("test-signing-key", "kycgate", "kycgate-api")
	userID     = id.UserID(uuid.New())
)

func sign(t *testing.T, claims Claims, method jwt.SigningMethod, key any) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func validClaims() Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    "kycgate",
			Audience:  []string{"kycgate-api"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestGenerateAndValidate(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, requestcontext.RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateTokenRejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	badSubject := validClaims()
	badSubject.Subject = "alice"

	badRole := validClaims()
	badRole.Role = "superuser"

	otherAudience := validClaims()
	otherAudience.Audience = []string{"other"}

	tests := []struct {
		name    string
		token   string
		message string
	}{
		{"garbage", "invalid-token-string", "invalid token"},
		{"expired", sign(t, expired, jwt.SigningMethodHS256, []byte("test-signing-key")), "token has expired"},
		{"missing expiry", sign(t, noExpiry, jwt.SigningMethodHS256, []byte("test-signing-key")), "invalid token"},
		{"wrong key", sign(t, validClaims(), jwt.SigningMethodHS256, []byte("other-key")), "invalid token"},
		{"wrong algorithm", sign(t, validClaims(), jwt.SigningMethodHS512, []byte("test-signing-key")), "invalid token"},
		{"wrong audience", sign(t, otherAudience, jwt.SigningMethodHS256, []byte("test-signing-key")), "invalid token"},
		{"non-uuid subject", sign(t, badSubject, jwt.SigningMethodHS256, []byte("test-signing-key")), "invalid token subject"},
		{"unknown role", sign(t, badRole, jwt.SigningMethodHS256, []byte("test-signing-key")), "unknown role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jwtService.ValidateToken(tt.token)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLeewayToleratesSkew(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Second))
	token := sign(t, claims, jwt.SigningMethodHS256, []byte("test-signing-key"))

	lenient := NewJWTService("test-signing-key", "kycgate", "kycgate-api", WithLeeway(time.Minute))
	_, err := lenient.ValidateToken(token)
	assert.NoError(t, err)
}

func TestAdapterMapsClaims(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, requestcontext.RoleUser, time.Hour)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "user", claims.Role)
	assert.NotEmpty(t, claims.JTI)
}
