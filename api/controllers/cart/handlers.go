package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type transition interface {
	Complete(ctx context.Context, userID uuid.UUID, guest *cartsvc.Cart) cartsvc.TransitionResult
}

// CartFetch returns the caller's cart: the server cart when signed in, the
// decoded guest cart otherwise.
func CartFetch(svc cartsvc.Service, guests *GuestTransport, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		c, err := svc.Fetch(r.Context(), resolveOwner(r, guests))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// CartAddItem adds quantity (default 1) of an item.
func CartAddItem(svc cartsvc.Service, guests *GuestTransport, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty, err := body.quantity()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := resolveOwner(r, guests)
		c, err := svc.AddItem(r.Context(), owner, body.ItemID, qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, owner, guests, logg, c)
	}
}

// CartSetQuantity sets an item's quantity. Zero or less removes the line.
func CartSetQuantity(svc cartsvc.Service, guests *GuestTransport, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		itemID := strings.TrimSpace(chi.URLParam(r, "itemId"))
		var body setQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Quantity == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"quantity": "is required"}))
			return
		}
		if err := validators.IntAtMost("quantity", *body.Quantity, cartsvc.MaxLineQuantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := resolveOwner(r, guests)
		c, err := svc.SetQuantity(r.Context(), owner, itemID, *body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, owner, guests, logg, c)
	}
}

// CartRemoveItem deletes an item's line. Removing an absent item succeeds.
func CartRemoveItem(svc cartsvc.Service, guests *GuestTransport, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		owner := resolveOwner(r, guests)
		c, err := svc.RemoveItem(r.Context(), owner, strings.TrimSpace(chi.URLParam(r, "itemId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, owner, guests, logg, c)
	}
}

func CartSummary(svc cartsvc.Service, guests *GuestTransport, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		sum, err := svc.Summary(r.Context(), resolveOwner(r, guests))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sum)
	}
}

// CartMerge folds a guest cart into the signed-in user's server cart. The
// guest cart is taken from the body, or from the guest header or cookie when
// the body is empty. The cookie is expired only once the merge is persisted.
func CartMerge(flow transition, guests *GuestTransport, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if flow == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var guest *cartsvc.Cart
		if !validators.HasBody(r) {
			guest = guests.Read(r)
		} else {
			var body mergeRequest
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			guest = &cartsvc.Cart{Items: body.Items, UpdatedAt: body.UpdatedAt}
		}

		result := flow.Complete(r.Context(), userID, guest)
		if result.Err != nil {
			responses.WriteError(r.Context(), logg, w, result.Err)
			return
		}
		if result.GuestCleared {
			guests.Clear(w)
		}
		responses.WriteSuccess(w, mergeResponse{Cart: result.Cart, GuestCartCleared: result.GuestCleared})
	}
}

func resolveOwner(r *http.Request, guests *GuestTransport) cartsvc.Owner {
	if userID := middleware.UserUUIDFromContext(r.Context()); userID != uuid.Nil {
		return cartsvc.ServerOwner(userID)
	}
	return cartsvc.GuestOwner(guests.Read(r))
}

func writeCart(w http.ResponseWriter, r *http.Request, owner cartsvc.Owner, guests *GuestTransport, logg *logger.Logger, c *cartsvc.Cart) {
	if owner.IsGuest() {
		if err := guests.Write(w, c); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode guest cart"))
			return
		}
	}
	responses.WriteSuccess(w, c)
}
