package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("s3cret", "patients-api", time.Hour)

	token, exp, err := svc.GenerateAccessToken("nurse.joy", "nurse", "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "nurse.joy", claims.Subject)
	assert.Equal(t, "nurse", claims.Role)
	assert.Empty(t, claims.PID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTService("one", "patients-api", time.Hour).GenerateAccessToken("a", "admin", "")
	require.NoError(t, err)

	_, err = NewJWTService("two", "patients-api", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("s3cret", "patients-api", time.Minute).(*hmacService)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := svc.GenerateAccessToken("a", "admin", "")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	token, _, err := NewJWTService("s3cret", "elsewhere", time.Hour).GenerateAccessToken("a", "admin", "")
	require.NoError(t, err)

	_, err = NewJWTService("s3cret", "patients-api", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTService("s3cret", "", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPatientTokenCarriesPID(t *testing.T) {
	svc := NewJWTService("s3cret", "", time.Hour)
	token, _, err := svc.GenerateAccessToken("john", "patient", "PID-2026-0001")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "PID-2026-0001", claims.PID)
}
