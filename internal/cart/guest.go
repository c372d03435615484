package cart

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// MaxGuestPayloadBytes bounds the encoded guest cart accepted from a client.
const MaxGuestPayloadBytes = 8 << 10

var errGuestTooLarge = errors.New("guest cart payload too large")

// guestPayload is the persisted record shape without userId.
type guestPayload struct {
	Items     []Line `json:"items"`
	UpdatedAt int64  `json:"updatedAt"`
}

// EncodeGuest serializes a guest cart as unpadded base64url JSON, suitable for
// a cookie value or header.
func EncodeGuest(c *Cart) (string, error) {
	payload := guestPayload{Items: []Line{}}
	if c != nil {
		payload.UpdatedAt = c.UpdatedAt
		if c.Items != nil {
			payload.Items = c.Items
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode guest cart: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeGuest parses an encoded guest cart. Quantities must be JSON integers.
// Non-positive quantities are floored to 1 before normalizing, so every
// decoded line survives. The result never carries an owner.
func DecodeGuest(encoded string) (*Cart, error) {
	encoded = strings.TrimRight(strings.TrimSpace(encoded), "=")
	if len(encoded) > MaxGuestPayloadBytes {
		return nil, errGuestTooLarge
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode guest cart: %w", err)
	}
	var payload guestPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse guest cart: %w", err)
	}
	c := &Cart{Items: payload.Items, UpdatedAt: payload.UpdatedAt}
	c.floorQuantities()
	c.Normalize()
	return c, nil
}

// DecodeGuestOrEmpty decodes encoded, falling back to an empty guest cart on
// missing or corrupt input. Corruption is logged, absence is not.
func DecodeGuestOrEmpty(ctx context.Context, logg *logger.Logger, encoded string, now time.Time) *Cart {
	if strings.TrimSpace(encoded) == "" {
		return NewGuestCart(now)
	}
	c, err := DecodeGuest(encoded)
	if err != nil {
		if logg != nil {
			logg.Warn(logg.WithField(ctx, "cause", err.Error()), "cart.guest.corrupt_payload")
		}
		return NewGuestCart(now)
	}
	return c
}
