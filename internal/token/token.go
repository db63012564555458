package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"procurement/internal/models"
)

// Reference identifies the approval step an emailed link acts on.
type Reference struct {
	RequestId string `json:"requestId"`
	StepId    string `json:"stepId"`
}

// Claims is a decoded token. Id and ExpiresAt are empty for plain tokens.
type Claims struct {
	Reference
	Id        string
	ExpiresAt time.Time
}

type Codec interface {
	Encode(ref Reference) (string, error)
	Decode(token string) (Claims, error)
}

// Plain serializes the reference as base64 encoded JSON. It carries no signature or expiry.
type Plain struct{}

func (Plain) Encode(ref Reference) (string, error) {
	data, err := json.Marshal(ref)
	if err != nil {
		return "", fmt.Errorf("token.Plain.Encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (Plain) Decode(token string) (Claims, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, models.ErrInvalidToken
	}

	var ref Reference
	if err = json.Unmarshal(data, &ref); err != nil {
		return Claims{}, models.ErrInvalidToken
	}
	if ref.RequestId == "" || ref.StepId == "" {
		return Claims{}, models.ErrInvalidToken
	}
	return Claims{Reference: ref}, nil
}

// Guard remembers used token ids so a link can be acted on only once.
type Guard interface {
	// Use marks the id as spent and reports whether it was unused before.
	Use(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// Release makes a spent id usable again after the action it guarded was rolled back.
	Release(ctx context.Context, id string) error
}

// NopGuard accepts every token.
type NopGuard struct{}

func (NopGuard) Use(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (NopGuard) Release(context.Context, string) error {
	return nil
}
