package cart

import (
	"net/http"
	"time"

	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// GuestCartHeader carries the encoded guest cart for clients that cannot use cookies.
const GuestCartHeader = "X-Guest-Cart"

// GuestTransport reads and writes the client-held guest cart. The header wins
// over the cookie when both are present.
type GuestTransport struct {
	cookieName string
	maxAge     time.Duration
	secure     bool
	logg       *logger.Logger
	now        func() time.Time
}

func NewGuestTransport(cfg config.CartConfig, logg *logger.Logger) *GuestTransport {
	name := cfg.GuestCookieName
	if name == "" {
		name = "guest_cart"
	}
	return &GuestTransport{
		cookieName: name,
		maxAge:     cfg.GuestCookieMaxAge,
		secure:     cfg.GuestCookieSecure,
		logg:       logg,
		now:        time.Now,
	}
}

// Read returns the caller's guest cart. Absent or corrupt payloads yield an
// empty cart.
func (g *GuestTransport) Read(r *http.Request) *cartsvc.Cart {
	return cartsvc.DecodeGuestOrEmpty(r.Context(), g.logg, g.raw(r), g.now())
}

// Present reports whether the request carried a guest cart at all.
func (g *GuestTransport) Present(r *http.Request) bool {
	return g.raw(r) != ""
}

func (g *GuestTransport) raw(r *http.Request) string {
	if v := r.Header.Get(GuestCartHeader); v != "" {
		return v
	}
	if c, err := r.Cookie(g.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Write stores c as both cookie and response header.
func (g *GuestTransport) Write(w http.ResponseWriter, c *cartsvc.Cart) error {
	encoded, err := cartsvc.EncodeGuest(c)
	if err != nil {
		return err
	}
	http.SetCookie(w, g.cookie(encoded, int(g.maxAge.Seconds())))
	w.Header().Set(GuestCartHeader, encoded)
	return nil
}

// Clear expires the guest cookie.
func (g *GuestTransport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, g.cookie("", -1))
}

func (g *GuestTransport) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     g.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
