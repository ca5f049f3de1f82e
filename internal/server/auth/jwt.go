// Package auth issues and verifies the signed identity tokens carried as
// bearer credentials.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity attached to a request: the user id and role.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Role   string `json:"role"`
}

// Identity is the verified principal extracted from a token.
type Identity struct {
	UserID string
	Role   models.Role
}

func (i Identity) IsAdmin() bool { return i.Role.IsAdmin() }

// IssueIdentityToken signs an HS256 token for the user. A zero validity
// produces a token without an expiry claim.
func IssueIdentityToken(userID string, role models.Role, secretKey []byte, validity time.Duration) (string, error) {
	claims := Claims{UserID: userID, Role: string(role)}
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if validity != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(validity))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseIdentityToken verifies the signature and expiry of tokenString.
// It returns common.ErrTokenExpired for an expired token and
// common.ErrInvalidToken for anything else that fails verification.
func ParseIdentityToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, Role: models.ParseRole(claims.Role)}, nil
}
