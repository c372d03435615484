package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type catalog map[string]int64

func (c catalog) Exists(_ context.Context, id string) (bool, error) {
	_, ok := c[id]
	return ok, nil
}

func (c catalog) PriceOf(_ context.Context, id string) (int64, error) {
	p, ok := c[id]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return p, nil
}

type failingStore struct{ *cartsvc.MemoryStore }

func (failingStore) Put(context.Context, uuid.UUID, *cartsvc.Cart) error {
	return errors.New("disk full")
}

type harness struct {
	svc    cartsvc.Service
	flow   *cartsvc.Transition
	guests *GuestTransport
	store  *cartsvc.MemoryStore
	router http.Handler
}

func newHarness(t *testing.T, store cartsvc.Store) *harness {
	t.Helper()
	mem := cartsvc.NewMemoryStore()
	if store == nil {
		store = mem
	}
	svc, err := cartsvc.NewService(cartsvc.ServiceParams{
		Store:   store,
		Locker:  cartsvc.NewLocalLocker(),
		Lookup:  catalog{"p1": 14900, "p2": 9900, "p3": 19900},
		Metrics: metrics.NewCartMetrics(prometheus.NewRegistry()),
		Logger:  logger.Nop(),
		Retry:   cartsvc.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	require.NoError(t, err)

	h := &harness{
		svc:    svc,
		flow:   cartsvc.NewTransition(svc, logger.Nop()),
		guests: NewGuestTransport(config.CartConfig{GuestCookieName: "guest_cart", GuestCookieMaxAge: time.Hour}, logger.Nop()),
		store:  mem,
	}
	r := chi.NewRouter()
	r.Get("/api/cart", CartFetch(h.svc, h.guests, nil))
	r.Post("/api/cart", CartAddItem(h.svc, h.guests, nil))
	r.Get("/api/cart/summary", CartSummary(h.svc, h.guests, nil))
	r.Post("/api/cart/merge", CartMerge(h.flow, h.guests, nil))
	r.Patch("/api/cart/{itemId}", CartSetQuantity(h.svc, h.guests, nil))
	r.Delete("/api/cart/{itemId}", CartRemoveItem(h.svc, h.guests, nil))
	h.router = r
	return h
}

func (h *harness) do(t *testing.T, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	resp := httptest.NewRecorder()
	h.router.ServeHTTP(resp, req)
	return resp
}

func asUser(id uuid.UUID) func(*http.Request) {
	return func(r *http.Request) {
		*r = *r.WithContext(middleware.WithUserID(r.Context(), id.String()))
	}
}

func withGuestHeader(encoded string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(GuestCartHeader, encoded) }
}

func decodeCart(t *testing.T, resp *httptest.ResponseRecorder) cartsvc.Cart {
	t.Helper()
	var envelope struct {
		Data cartsvc.Cart `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func guestCookie(resp *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range resp.Result().Cookies() {
		if c.Name == "guest_cart" {
			return c
		}
	}
	return nil
}

func TestGuestAddWritesCookieAndHeader(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodPost, "/api/cart", `{"itemId":"p1"}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	got := decodeCart(t, resp)
	assert.Nil(t, got.UserID)
	assert.Equal(t, []cartsvc.Line{{ItemID: "p1", Quantity: 1}}, got.Items)

	encoded := resp.Header().Get(GuestCartHeader)
	require.NotEmpty(t, encoded)
	cookie := guestCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, encoded, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	resp = h.do(t, http.MethodPost, "/api/cart", `{"itemId":"p1","quantity":2}`, withGuestHeader(encoded))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 3, decodeCart(t, resp).Items[0].Quantity)
}

func TestGuestCartReadFromCookie(t *testing.T) {
	h := newHarness(t, nil)
	encoded, err := cartsvc.EncodeGuest(&cartsvc.Cart{Items: []cartsvc.Line{{ItemID: "p2", Quantity: 4}}})
	require.NoError(t, err)

	resp := h.do(t, http.MethodGet, "/api/cart", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "guest_cart", Value: encoded})
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []cartsvc.Line{{ItemID: "p2", Quantity: 4}}, decodeCart(t, resp).Items)
}

func TestCorruptGuestCartFallsBackToEmpty(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, http.MethodGet, "/api/cart", "", withGuestHeader("%%%not-base64"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decodeCart(t, resp).Items)
}

func TestAddValidation(t *testing.T) {
	h := newHarness(t, nil)

	cases := map[string]string{
		"missing item":      `{}`,
		"zero quantity":     `{"itemId":"p1","quantity":0}`,
		"string quantity":   `{"itemId":"p1","quantity":"2"}`,
		"fraction quantity": `{"itemId":"p1","quantity":1.5}`,
		"unknown field":     `{"itemId":"p1","qty":2}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := h.do(t, http.MethodPost, "/api/cart", body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, resp))
		})
	}
}

func TestAddUnknownItemIsNotFoundOnBothPaths(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodPost, "/api/cart", `{"itemId":"ghost"}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = h.do(t, http.MethodPost, "/api/cart", `{"itemId":"ghost"}`, asUser(uuid.New()))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeNotFound), errorCode(t, resp))
}

func TestServerCartLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	user := uuid.New()

	resp := h.do(t, http.MethodGet, "/api/cart", "", asUser(user))
	require.Equal(t, http.StatusOK, resp.Code)
	created := decodeCart(t, resp)
	require.NotNil(t, created.UserID)
	assert.Equal(t, user, *created.UserID)
	assert.Empty(t, created.Items)

	resp = h.do(t, http.MethodPost, "/api/cart", `{"itemId":"p1","quantity":2}`, asUser(user))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get(GuestCartHeader), "server carts never touch the guest transport")
	assert.Nil(t, guestCookie(resp))

	resp = h.do(t, http.MethodPatch, "/api/cart/p1", `{"quantity":5}`, asUser(user))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 5, decodeCart(t, resp).Items[0].Quantity)

	resp = h.do(t, http.MethodPatch, "/api/cart/p2", `{"quantity":1}`, asUser(user))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeNotInCart), errorCode(t, resp))

	resp = h.do(t, http.MethodPatch, "/api/cart/p1", `{}`, asUser(user))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.do(t, http.MethodPatch, "/api/cart/p1", `{"quantity":0}`, asUser(user))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decodeCart(t, resp).Items)

	resp = h.do(t, http.MethodDelete, "/api/cart/p3", "", asUser(user))
	assert.Equal(t, http.StatusOK, resp.Code, "removing an absent item is not an error")

	stored, err := h.store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
}

func TestSummaryPricesLines(t *testing.T) {
	h := newHarness(t, nil)
	encoded, err := cartsvc.EncodeGuest(&cartsvc.Cart{Items: []cartsvc.Line{
		{ItemID: "p1", Quantity: 2},
		{ItemID: "p2", Quantity: 1},
	}})
	require.NoError(t, err)

	resp := h.do(t, http.MethodGet, "/api/cart/summary", "", withGuestHeader(encoded))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data struct {
			ItemCount         int    `json:"itemCount"`
			Subtotal          int64  `json:"subtotal"`
			SubtotalFormatted string `json:"subtotalFormatted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.EqualValues(t, 39700, envelope.Data.Subtotal)
	assert.Equal(t, "397.00", envelope.Data.SubtotalFormatted)
	assert.Equal(t, 3, envelope.Data.ItemCount)
}

func TestMergeRequiresAuthentication(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, http.MethodPost, "/api/cart/merge", `{"items":[]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestMergeFromBodyClearsCookie(t *testing.T) {
	h := newHarness(t, nil)
	user := uuid.New()
	_, err := h.svc.AddItem(context.Background(), cartsvc.ServerOwner(user), "p1", 1)
	require.NoError(t, err)

	resp := h.do(t, http.MethodPost, "/api/cart/merge",
		`{"items":[{"itemId":"p1","quantity":3},{"itemId":"ghost","quantity":1},{"itemId":"p2","quantity":1}]}`,
		asUser(user))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data struct {
			Cart             cartsvc.Cart `json:"cart"`
			GuestCartCleared bool         `json:"guestCartCleared"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.GuestCartCleared)
	assert.Equal(t, []cartsvc.Line{{ItemID: "p1", Quantity: 4}, {ItemID: "p2", Quantity: 1}}, envelope.Data.Cart.Items)

	cookie := guestCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestMergeFromHeaderWhenBodyEmpty(t *testing.T) {
	h := newHarness(t, nil)
	user := uuid.New()
	encoded, err := cartsvc.EncodeGuest(&cartsvc.Cart{Items: []cartsvc.Line{{ItemID: "p3", Quantity: 2}}})
	require.NoError(t, err)

	resp := h.do(t, http.MethodPost, "/api/cart/merge", "", func(r *http.Request) {
		asUser(user)(r)
		withGuestHeader(encoded)(r)
	})
	require.Equal(t, http.StatusOK, resp.Code)

	stored, err := h.store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, []cartsvc.Line{{ItemID: "p3", Quantity: 2}}, stored.Items)
}

func TestMergePersistFailureKeepsGuestCookie(t *testing.T) {
	h := newHarness(t, failingStore{cartsvc.NewMemoryStore()})

	resp := h.do(t, http.MethodPost, "/api/cart/merge", `{"items":[{"itemId":"p1","quantity":1}]}`, asUser(uuid.New()))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Nil(t, guestCookie(resp), "guest cookie must survive a failed merge")
}

func TestMergeFromHeaderWhenChunkedBodyEmpty(t *testing.T) {
	h := newHarness(t, nil)
	user := uuid.New()
	encoded, err := cartsvc.EncodeGuest(&cartsvc.Cart{Items: []cartsvc.Line{{ItemID: "p2", Quantity: 1}}})
	require.NoError(t, err)

	resp := h.do(t, http.MethodPost, "/api/cart/merge", "", func(r *http.Request) {
		asUser(user)(r)
		withGuestHeader(encoded)(r)
		r.Body = io.NopCloser(strings.NewReader(""))
		r.ContentLength = -1
		r.TransferEncoding = []string{"chunked"}
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	stored, err := h.store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, []cartsvc.Line{{ItemID: "p2", Quantity: 1}}, stored.Items)
}

func TestQuantityAboveLineCapIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	user := uuid.New()
	over := cartsvc.MaxLineQuantity + 1

	resp := h.do(t, http.MethodPost, "/api/cart", fmt.Sprintf(`{"itemId":"p1","quantity":%d}`, over), asUser(user))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.do(t, http.MethodPost, "/api/cart", `{"itemId":"p1","quantity":9223372036854775807}`, asUser(user))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.do(t, http.MethodPost, "/api/cart", fmt.Sprintf(`{"itemId":"p1","quantity":%d}`, cartsvc.MaxLineQuantity), asUser(user))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(t, http.MethodPatch, "/api/cart/p1", fmt.Sprintf(`{"quantity":%d}`, over), asUser(user))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	stored, err := h.store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, cartsvc.MaxLineQuantity, stored.Quantity("p1"))
}
