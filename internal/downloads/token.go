package downloads

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var tokenSigningMethod = jwt.SigningMethodHS256

// TokenClaims binds a download grant to one user, one product and (for paid
// products) one license. The jti makes the token single-use.
type TokenClaims struct {
	UserID    uuid.UUID  `json:"user_id"`
	ProductID uuid.UUID  `json:"product_id"`
	LicenseID *uuid.UUID `json:"license_id,omitempty"`
	jwt.RegisteredClaims
}

func mintToken(secret string, now time.Time, ttl time.Duration, claims TokenClaims) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("download token secret is required")
	}

	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(tokenSigningMethod, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing download token: %w", err)
	}
	return signed, nil
}

func parseToken(secret, tokenString string) (*TokenClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("download token secret is required")
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != tokenSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{tokenSigningMethod.Alg()}),
	)
	if err != nil {
		return nil, err
	}

	if claims.UserID == uuid.Nil || claims.ProductID == uuid.Nil {
		return nil, fmt.Errorf("download token missing structural binding")
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("download token missing jti")
	}
	return claims, nil
}
