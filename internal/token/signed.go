package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"procurement/internal/models"
)

type signedClaims struct {
	RequestId string `json:"requestId"`
	StepId    string `json:"stepId"`
	jwt.RegisteredClaims
}

// Signed issues HS256 tokens bound to a request step with an expiry.
type Signed struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigned(secret string, ttl time.Duration) (*Signed, error) {
	if secret == "" {
		return nil, errors.New("token.NewSigned: empty secret")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token.NewSigned: invalid ttl %s", ttl)
	}
	return &Signed{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *Signed) Encode(ref Reference) (string, error) {
	now := s.now()
	claims := signedClaims{
		RequestId: ref.RequestId,
		StepId:    ref.StepId,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token.Signed.Encode: %w", err)
	}
	return token, nil
}

func (s *Signed) Decode(token string) (Claims, error) {
	claims := &signedClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Claims{}, models.ErrInvalidToken
	}
	if claims.RequestId == "" || claims.StepId == "" {
		return Claims{}, models.ErrInvalidToken
	}

	result := Claims{
		Reference: Reference{RequestId: claims.RequestId, StepId: claims.StepId},
		Id:        claims.ID,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}
