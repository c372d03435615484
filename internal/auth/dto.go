package auth

import (
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/users"
)

// SignupRequest is the payload accepted by the signup endpoint.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// GuestCartPayload is a guest cart sent inline with a login request.
type GuestCartPayload struct {
	Items     []cart.Line `json:"items"`
	UpdatedAt int64       `json:"updatedAt"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email     string            `json:"email" validate:"required,email"`
	Password  string            `json:"password" validate:"required"`
	GuestCart *GuestCartPayload `json:"guestCart,omitempty"`
}

// TokenPair is an access token with its refresh token.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// SignupResponse is returned after an account is created.
type SignupResponse struct {
	TokenPair
	User *users.UserDTO `json:"user"`
}

// LoginResponse carries the session plus the outcome of the guest cart hand-over.
// Cart is nil when the merge failed; the client keeps its guest cart then.
type LoginResponse struct {
	TokenPair
	User             *users.UserDTO `json:"user"`
	Cart             *cart.Cart     `json:"cart"`
	GuestCartCleared bool           `json:"guestCartCleared"`
}
