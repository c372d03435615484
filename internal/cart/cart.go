package cart

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxLineQuantity caps a single line. Additions past it saturate.
const MaxLineQuantity = 9999

// ErrNotInCart is returned by SetQuantity when a positive quantity targets a missing line.
var ErrNotInCart = errors.New("item not in cart")

// Line is one (item, quantity) pair. Quantity stays within [1, MaxLineQuantity] once stored.
type Line struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// Cart is the cart aggregate. A nil UserID marks a guest cart held by the
// client; otherwise it is the user's server cart. UpdatedAt is epoch millis.
//
// The JSON shape {userId, items, updatedAt} is the storage and wire contract.
type Cart struct {
	UserID    *uuid.UUID `json:"userId,omitempty"`
	Items     []Line     `json:"items"`
	UpdatedAt int64      `json:"updatedAt"`
}

// NewServerCart returns an empty cart owned by userID.
func NewServerCart(userID uuid.UUID, now time.Time) *Cart {
	id := userID
	return &Cart{UserID: &id, Items: []Line{}, UpdatedAt: now.UnixMilli()}
}

// NewGuestCart returns an empty client-held cart.
func NewGuestCart(now time.Time) *Cart {
	return &Cart{Items: []Line{}, UpdatedAt: now.UnixMilli()}
}

func (c *Cart) IsGuest() bool {
	return c.UserID == nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Quantity returns the quantity held for itemID, or 0.
func (c *Cart) Quantity(itemID string) int {
	if i := c.indexOf(itemID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// Add increments an existing line or appends a new one. Quantities below 1
// count as 1 and the line total saturates at MaxLineQuantity.
func (c *Cart) Add(itemID string, qty int, now time.Time) {
	c.add(itemID, qty)
	c.Touch(now)
}

// SetQuantity replaces a line's quantity. A quantity of 0 or less removes the
// line and is a no-op when it is absent. A positive quantity on a missing line
// returns ErrNotInCart and leaves the cart untouched. Quantities above
// MaxLineQuantity are clamped.
func (c *Cart) SetQuantity(itemID string, qty int, now time.Time) error {
	i := c.indexOf(itemID)
	if qty <= 0 {
		if i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		c.Touch(now)
		return nil
	}
	if i < 0 {
		return ErrNotInCart
	}
	c.Items[i].Quantity = min(qty, MaxLineQuantity)
	c.Touch(now)
	return nil
}

// Remove deletes the line for itemID if present. It reports whether a line was removed.
func (c *Cart) Remove(itemID string, now time.Time) bool {
	removed := false
	if i := c.indexOf(itemID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		removed = true
	}
	c.Touch(now)
	return removed
}

// MergeReport counts how guest lines were folded in.
type MergeReport struct {
	Merged  int
	Dropped int
}

// Merge folds guest lines into the cart in order. Lines whose item is not
// known are dropped. Each accepted line adds max(1, qty).
func (c *Cart) Merge(lines []Line, known func(itemID string) bool, now time.Time) MergeReport {
	var report MergeReport
	for _, line := range lines {
		id := strings.TrimSpace(line.ItemID)
		if id == "" || !known(id) {
			report.Dropped++
			continue
		}
		c.add(id, line.Quantity)
		report.Merged++
	}
	c.Touch(now)
	return report
}

func (c *Cart) Touch(now time.Time) {
	c.UpdatedAt = now.UnixMilli()
}

// Normalize repairs state read from an untrusted source: blank item ids and
// non-positive quantities are dropped, duplicate lines are summed into the
// first occurrence and totals are clamped to MaxLineQuantity. It reports
// whether anything changed.
func (c *Cart) Normalize() bool {
	if c.Items == nil {
		c.Items = []Line{}
		return false
	}
	changed := false
	out := make([]Line, 0, len(c.Items))
	pos := make(map[string]int, len(c.Items))
	for _, line := range c.Items {
		id := strings.TrimSpace(line.ItemID)
		if id != line.ItemID {
			changed = true
		}
		if id == "" || line.Quantity <= 0 {
			changed = true
			continue
		}
		qty := line.Quantity
		if qty > MaxLineQuantity {
			qty = MaxLineQuantity
			changed = true
		}
		if i, ok := pos[id]; ok {
			out[i].Quantity = addQuantity(out[i].Quantity, qty)
			changed = true
			continue
		}
		pos[id] = len(out)
		out = append(out, Line{ItemID: id, Quantity: qty})
	}
	c.Items = out
	return changed
}

// floorQuantities raises every non-positive quantity to 1. Client-held carts
// go through it so a damaged line still merges as max(1, qty).
func (c *Cart) floorQuantities() {
	for i := range c.Items {
		if c.Items[i].Quantity < 1 {
			c.Items[i].Quantity = 1
		}
	}
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := &Cart{UpdatedAt: c.UpdatedAt, Items: make([]Line, len(c.Items))}
	copy(out.Items, c.Items)
	if c.UserID != nil {
		id := *c.UserID
		out.UserID = &id
	}
	return out
}

func (c *Cart) add(itemID string, qty int) {
	if qty < 1 {
		qty = 1
	}
	if i := c.indexOf(itemID); i >= 0 {
		c.Items[i].Quantity = addQuantity(c.Items[i].Quantity, qty)
		return
	}
	c.Items = append(c.Items, Line{ItemID: itemID, Quantity: min(qty, MaxLineQuantity)})
}

// addQuantity sums two positive quantities, saturating at MaxLineQuantity.
func addQuantity(have, qty int) int {
	if qty >= MaxLineQuantity-have {
		return MaxLineQuantity
	}
	return have + qty
}

func (c *Cart) indexOf(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}
