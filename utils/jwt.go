package utils

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity provider's access-token claims. Subject carries the
// user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParseJWTToken verifies an HS256 token signed with secret.
func ParseJWTToken(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, errors.New("token secret not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.Subject == "" {
			return nil, errors.New("token has no subject")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// SignJWTToken issues an HS256 token for userID.
func SignJWTToken(userID, secret string, claims Claims) (string, error) {
	claims.Subject = userID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
