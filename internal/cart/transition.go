package cart

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
)

// TransitionResult reports how a guest cart fared when its owner signed in.
type TransitionResult struct {
	// Cart is the user's server cart after the merge. Nil when the merge failed.
	Cart *Cart
	// GuestCleared is true only once the merged cart has been persisted, or
	// when there was nothing to merge.
	GuestCleared bool
	Merged       bool
	Err          error
}

// Transition hands a guest cart over to the signed-in user.
type Transition struct {
	carts Service
	logg  *logger.Logger
}

func NewTransition(carts Service, logg *logger.Logger) *Transition {
	return &Transition{carts: carts, logg: logg}
}

// Complete merges guest into the user's server cart. The guest cart must only
// be discarded by the caller when GuestCleared is set. A failed merge does not
// fail the sign-in; it is reported through Err.
func (t *Transition) Complete(ctx context.Context, userID uuid.UUID, guest *Cart) TransitionResult {
	if guest == nil || guest.IsEmpty() {
		c, err := t.carts.Fetch(ctx, ServerOwner(userID))
		if err != nil {
			t.logg.Warn(t.logg.WithUserID(ctx, userID.String()), "cart.transition.fetch_failed")
			return TransitionResult{GuestCleared: true, Err: err}
		}
		return TransitionResult{Cart: c, GuestCleared: true}
	}

	merged, err := t.carts.Merge(ctx, userID, guest.Items)
	if err != nil {
		t.logg.Error(t.logg.WithFields(ctx, map[string]any{
			"user_id":     userID.String(),
			"guest_lines": len(guest.Items),
		}), "cart.transition.merge_failed", err)
		return TransitionResult{Err: err}
	}
	return TransitionResult{Cart: merged, GuestCleared: true, Merged: true}
}
