package service

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"restaurant_order/model"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// TokenGenerator returns unguessable session tokens.
type TokenGenerator func() (string, error)

// RandomToken is 32 bytes from crypto/rand, hex encoded.
func RandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Publisher fans an event out to the staff connections of a restaurant.
type Publisher interface {
	Publish(restaurantID string, kind model.EventKind, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, model.EventKind, any) {}
