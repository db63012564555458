package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"procurement/internal/models"
)

// Claims represents dashboard session claims
type Claims struct {
	UserId   string `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// GenerateToken issues a session token for a dashboard user.
func (a *Authenticator) GenerateToken(userId, username string, isAdmin bool, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("auth.Authenticator.GenerateToken: JWT secret is not configured")
	}

	now := time.Now()
	claims := &Claims{
		UserId:   userId,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userId,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth.Authenticator.GenerateToken: %w", err)
	}
	return token, nil
}

// Authenticate validates an Authorization header value and returns the acting user.
func (a *Authenticator) Authenticate(header string) (models.Actor, error) {
	if len(a.secret) == 0 {
		return models.Actor{}, models.ErrUnauthorized
	}

	tokenString, err := extractToken(header)
	if err != nil {
		return models.Actor{}, models.ErrUnauthorized
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Actor{}, models.ErrUnauthorized
	}
	if claims.Username == "" && claims.UserId == "" {
		return models.Actor{}, models.ErrUnauthorized
	}

	return models.Actor{UserId: claims.UserId, Username: claims.Username, IsAdmin: claims.IsAdmin}, nil
}

// extractToken supports both "Bearer <token>" and just "<token>"
func extractToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.Split(header, " ")
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1], nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	return "", errors.New("invalid authorization header format")
}
