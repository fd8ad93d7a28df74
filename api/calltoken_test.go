package api

import (
	"os"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallTokenRoundTrip(t *testing.T) {
	_ = os.Setenv("JWT_SECRET", "test-secret")

	token, err := NewCallToken("user-1", "PATIENT", "room-1")
	require.NoError(t, err)

	claims, err := ParseCallToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "PATIENT", claims.Role)
	assert.Equal(t, "room-1", claims.RoomID)
}

func TestParseCallTokenRejectsTampered(t *testing.T) {
	_ = os.Setenv("JWT_SECRET", "test-secret")

	token, err := NewCallToken("user-1", "PATIENT", "room-1")
	require.NoError(t, err)

	_ = os.Setenv("JWT_SECRET", "another-secret")
	_, err = ParseCallToken(token)
	assert.Error(t, err)
}

func TestParseCallTokenRejectsNonCallToken(t *testing.T) {
	_ = os.Setenv("JWT_SECRET", "test-secret")

	claims := jwt.MapClaims{
		"sub":  "user-1",
		"role": "PATIENT",
		"typ":  "session",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ParseCallToken(token)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not a call token")
}

func TestNewCallTokenRequiresSecret(t *testing.T) {
	_ = os.Unsetenv("JWT_SECRET")

	_, err := NewCallToken("user-1", "PATIENT", "room-1")
	assert.Error(t, err)
}
