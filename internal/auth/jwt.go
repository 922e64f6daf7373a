// Package auth hashes passwords and issues the session tokens kept in the
// browser cookie.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mygizmo/internal/models"
)

const issuer = "mygizmo"

type AppClaims struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

func GenerateToken(id models.Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &AppClaims{
		AccountID: id.AccountID,
		Username:  id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyToken checks the signature and expiry of tokenString and returns
// the identity it carries.
func VerifyToken(tokenString, secret string) (*models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AppClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &models.Identity{AccountID: claims.AccountID, Username: claims.Username}, nil
}
