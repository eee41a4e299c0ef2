package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name"`
}

// GenerateToken signs an HS256 access token for the principal.
func GenerateToken(p models.Principal, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Role: string(p.Role),
		Name: p.Name,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns the principal it was issued for.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (models.Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Principal{}, common.ErrTokenExpired
		}
		return models.Principal{}, common.ErrInvalidToken
	}

	if !token.Valid {
		return models.Principal{}, common.ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return models.Principal{}, common.ErrInvalidToken
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return models.Principal{}, common.ErrInvalidToken
	}

	return models.Principal{UserID: id, Name: claims.Name, Role: role}, nil
}
