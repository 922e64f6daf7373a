package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"mygizmo/internal/models"
)

func TestHashPassword(t *testing.T) {
	password := "s3cret-pass"
	hash, err := HashPassword(password)

	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEqual(t, password, hash)

	again, err := HashPassword(password)
	require.NoError(t, err)
	require.NotEqual(t, hash, again, "hashes are salted")
}

func TestCheckPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	require.True(t, CheckPasswordHash("s3cret-pass", hash))
	require.False(t, CheckPasswordHash("wrong", hash))
	require.False(t, CheckPasswordHash("s3cret-pass", "not-a-hash"))
}

func TestGenerateAndVerifyToken(t *testing.T) {
	secret := "test-secret"
	id := models.Identity{AccountID: 42, Username: "alice"}

	token, err := GenerateToken(id, secret, 2*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := VerifyToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, id, *got)

	_, err = VerifyToken(token, "other-secret")
	require.ErrorIs(t, err, jwt.ErrSignatureInvalid)

	_, err = VerifyToken("garbage", secret)
	require.Error(t, err)
}

func TestVerifyToken_Expired(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateToken(models.Identity{AccountID: 1, Username: "bob"}, secret, -time.Minute)
	require.NoError(t, err)

	_, err = VerifyToken(token, secret)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyToken_WrongIssuer(t *testing.T) {
	secret := "test-secret"
	claims := &AppClaims{
		AccountID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = VerifyToken(token, secret)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}
