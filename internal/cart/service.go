package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const summaryPriceConcurrency = 4

// ItemLookup answers catalog questions for cart validation and pricing.
type ItemLookup interface {
	Exists(ctx context.Context, itemID string) (bool, error)
	PriceOf(ctx context.Context, itemID string) (int64, error)
}

// Owner identifies whose cart an operation targets. A zero UserID means the
// guest cart carried in Guest.
type Owner struct {
	UserID uuid.UUID
	Guest  *Cart
}

func ServerOwner(userID uuid.UUID) Owner { return Owner{UserID: userID} }

func GuestOwner(guest *Cart) Owner { return Owner{Guest: guest} }

func (o Owner) IsGuest() bool { return o.UserID == uuid.Nil }

func (o Owner) path() string {
	if o.IsGuest() {
		return enums.CartPathGuest.String()
	}
	return enums.CartPathServer.String()
}

// Service implements cart operations for both guest and server carts. Guest
// results are returned to the caller to hand back to the client; server
// results are persisted under a per-user lock.
type Service interface {
	Fetch(ctx context.Context, owner Owner) (*Cart, error)
	AddItem(ctx context.Context, owner Owner, itemID string, qty int) (*Cart, error)
	SetQuantity(ctx context.Context, owner Owner, itemID string, qty int) (*Cart, error)
	RemoveItem(ctx context.Context, owner Owner, itemID string) (*Cart, error)
	Merge(ctx context.Context, userID uuid.UUID, lines []Line) (*Cart, error)
	Summary(ctx context.Context, owner Owner) (*Summary, error)
}

// RetryPolicy bounds how a merged cart's persistence is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Store   Store
	Locker  Locker
	Lookup  ItemLookup
	Metrics *metrics.CartMetrics
	Logger  *logger.Logger
	Retry   RetryPolicy
	Now     func() time.Time
}

type service struct {
	store   Store
	locker  Locker
	lookup  ItemLookup
	metrics *metrics.CartMetrics
	logg    *logger.Logger
	retry   RetryPolicy
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(p ServiceParams) (Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if p.Locker == nil {
		return nil, fmt.Errorf("cart locker required")
	}
	if p.Lookup == nil {
		return nil, fmt.Errorf("item lookup required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Retry.MaxAttempts < 1 {
		p.Retry.MaxAttempts = 1
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		store:   p.Store,
		locker:  p.Locker,
		lookup:  p.Lookup,
		metrics: p.Metrics,
		logg:    p.Logger,
		retry:   p.Retry,
		now:     p.Now,
	}, nil
}

func (s *service) Fetch(ctx context.Context, owner Owner) (c *Cart, err error) {
	defer s.observe("fetch", owner, time.Now(), &err)
	if owner.IsGuest() {
		return s.guestCopy(owner), nil
	}
	c, err = s.store.Get(ctx, owner.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, itemID string, qty int) (c *Cart, err error) {
	defer s.observe("add", owner, time.Now(), &err)
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "itemId is required")
	}
	if err := s.requireItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, owner, func(c *Cart, now time.Time) error {
		c.Add(itemID, qty, now)
		return nil
	})
}

func (s *service) SetQuantity(ctx context.Context, owner Owner, itemID string, qty int) (c *Cart, err error) {
	defer s.observe("set_quantity", owner, time.Now(), &err)
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "itemId is required")
	}
	return s.mutate(ctx, owner, func(c *Cart, now time.Time) error {
		if err := c.SetQuantity(itemID, qty, now); err != nil {
			if errors.Is(err, ErrNotInCart) {
				return pkgerrors.New(pkgerrors.CodeNotInCart, "item not in cart").
					WithDetails(map[string]any{"itemId": itemID})
			}
			return err
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID string) (c *Cart, err error) {
	defer s.observe("remove", owner, time.Now(), &err)
	itemID = strings.TrimSpace(itemID)
	return s.mutate(ctx, owner, func(c *Cart, now time.Time) error {
		c.Remove(itemID, now)
		return nil
	})
}

// Merge folds guest lines into the user's server cart. Unknown items are
// dropped. The merged cart is persisted with bounded retries; on failure the
// error is returned and the caller must keep the guest cart.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, lines []Line) (c *Cart, err error) {
	owner := ServerOwner(userID)
	defer s.observe("merge", owner, time.Now(), &err)
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	known, err := s.knownItems(ctx, lines)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err = s.store.Get(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	report := c.Merge(lines, func(id string) bool { return known[id] }, s.now())

	if err := s.persistWithRetry(ctx, userID, c); err != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"user_id":  userID.String(),
			"attempts": s.retry.MaxAttempts,
		}), "cart.merge.persist_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merged cart could not be saved")
	}

	s.metrics.AddMergeLines(metrics.MergeLineMerged, report.Merged)
	s.metrics.AddMergeLines(metrics.MergeLineDropped, report.Dropped)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id": userID.String(),
		"merged":  report.Merged,
		"dropped": report.Dropped,
		"lines":   len(c.Items),
	}), "cart.merge.completed")
	return c, nil
}

// SummaryLine is a cart line priced against the current catalog.
type SummaryLine struct {
	ItemID             string `json:"itemId"`
	Quantity           int    `json:"quantity"`
	Available          bool   `json:"available"`
	UnitPrice          int64  `json:"unitPrice"`
	LineTotal          int64  `json:"lineTotal"`
	UnitPriceFormatted string `json:"unitPriceFormatted"`
	LineTotalFormatted string `json:"lineTotalFormatted"`
}

// Summary prices every line. Lines whose item left the catalog are marked
// unavailable and excluded from the subtotal.
type Summary struct {
	Items             []SummaryLine `json:"items"`
	ItemCount         int           `json:"itemCount"`
	Subtotal          int64         `json:"subtotal"`
	SubtotalFormatted string        `json:"subtotalFormatted"`
	UpdatedAt         int64         `json:"updatedAt"`
}

func (s *service) Summary(ctx context.Context, owner Owner) (sum *Summary, err error) {
	defer s.observe("summary", owner, time.Now(), &err)
	var c *Cart
	if owner.IsGuest() {
		c = s.guestCopy(owner)
	} else if c, err = s.store.Get(ctx, owner.UserID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	lines := make([]SummaryLine, len(c.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryPriceConcurrency)
	for i, line := range c.Items {
		g.Go(func() error {
			price, err := s.lookup.PriceOf(gctx, line.ItemID)
			out := SummaryLine{ItemID: line.ItemID, Quantity: line.Quantity}
			switch {
			case err == nil:
				out.Available = true
				out.UnitPrice = price
				out.LineTotal = lineTotal(price, line.Quantity)
			case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			default:
				return err
			}
			lines[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "price cart")
	}

	sum = &Summary{Items: lines, UpdatedAt: c.UpdatedAt}
	for i := range lines {
		lines[i].UnitPriceFormatted = formatCents(lines[i].UnitPrice)
		lines[i].LineTotalFormatted = formatCents(lines[i].LineTotal)
		if lines[i].Available {
			sum.ItemCount += lines[i].Quantity
			sum.Subtotal = addCents(sum.Subtotal, lines[i].LineTotal)
		}
	}
	sum.SubtotalFormatted = formatCents(sum.Subtotal)
	return sum, nil
}

func (s *service) mutate(ctx context.Context, owner Owner, fn func(c *Cart, now time.Time) error) (*Cart, error) {
	if owner.IsGuest() {
		c := s.guestCopy(owner)
		if err := fn(c, s.now()); err != nil {
			return nil, err
		}
		return c, nil
	}

	unlock, err := s.lock(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.store.Get(ctx, owner.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := fn(c, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, owner.UserID, c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return c, nil
}

func (s *service) persistWithRetry(ctx context.Context, userID uuid.UUID, c *Cart) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retry.InitialBackoff
	policy.MaxInterval = s.retry.MaxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := s.store.Put(ctx, userID, c); err != nil {
			s.metrics.IncMergePersistAttempt(metrics.OutcomeError)
			return struct{}{}, err
		}
		s.metrics.IncMergePersistAttempt(metrics.OutcomeOK)
		return struct{}{}, nil
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(s.retry.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"user_id":  userID.String(),
				"retry_in": next.String(),
				"cause":    err.Error(),
			}), "cart.merge.persist_retry")
		}),
	)
	return err
}

func (s *service) knownItems(ctx context.Context, lines []Line) (map[string]bool, error) {
	known := make(map[string]bool, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ItemID)
		if id == "" {
			continue
		}
		if _, seen := known[id]; seen {
			continue
		}
		ok, err := s.lookup.Exists(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "item lookup")
		}
		known[id] = ok
	}
	return known, nil
}

func (s *service) requireItem(ctx context.Context, itemID string) error {
	ok, err := s.lookup.Exists(ctx, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "item lookup")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found").
			WithDetails(map[string]any{"itemId": itemID})
	}
	return nil
}

func (s *service) lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lock")
	}
	return unlock, nil
}

func (s *service) guestCopy(owner Owner) *Cart {
	if owner.Guest == nil {
		return NewGuestCart(s.now())
	}
	c := owner.Guest.Clone()
	c.UserID = nil
	c.Normalize()
	return c
}

func (s *service) observe(op string, owner Owner, started time.Time, errp *error) {
	outcome := metrics.OutcomeOK
	if *errp != nil {
		outcome = metrics.OutcomeError
		if typed := pkgerrors.As(*errp); typed != nil {
			outcome = strings.ToLower(string(typed.Code()))
		}
	}
	s.metrics.ObserveOperation(op, owner.path(), outcome, time.Since(started))
}

// lineTotal and addCents saturate at math.MaxInt64 instead of wrapping.
func lineTotal(price int64, qty int) int64 {
	if price <= 0 || qty <= 0 {
		return 0
	}
	if price > math.MaxInt64/int64(qty) {
		return math.MaxInt64
	}
	return price * int64(qty)
}

func addCents(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
