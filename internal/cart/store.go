package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists server carts keyed by user id. Get lazily creates an empty
// cart and never returns nil on success. Put replaces the whole cart.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*Cart, error)
	Put(ctx context.Context, userID uuid.UUID, cart *Cart) error
}

// DBStore keeps carts in the carts/cart_lines tables.
type DBStore struct {
	db   *gorm.DB
	logg *logger.Logger
	now  func() time.Time
}

func NewDBStore(db *gorm.DB, logg *logger.Logger) *DBStore {
	return &DBStore{db: db, logg: logg, now: time.Now}
}

func (s *DBStore) Get(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	rec, err := s.find(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		header := models.Cart{UserID: userID, UpdatedAt: s.now().UTC()}
		if err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
			Omit("Lines").
			Create(&header).Error; err != nil {
			return nil, fmt.Errorf("create cart: %w", err)
		}
		rec, err = s.find(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	out := &Cart{UserID: &rec.UserID, Items: make([]Line, 0, len(rec.Lines)), UpdatedAt: rec.UpdatedAt.UnixMilli()}
	for _, l := range rec.Lines {
		out.Items = append(out.Items, Line{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	if out.Normalize() {
		warnCorrupt(ctx, s.logg, userID, "db", nil)
	}
	return out, nil
}

func (s *DBStore) Put(ctx context.Context, userID uuid.UUID, cart *Cart) error {
	c := cart.Clone()
	c.Normalize()
	lines := make([]models.CartLine, 0, len(c.Items))
	for i, l := range c.Items {
		lines = append(lines, models.CartLine{UserID: userID, ItemID: l.ItemID, Quantity: l.Quantity, Position: i})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		header := models.Cart{UserID: userID, UpdatedAt: time.UnixMilli(c.UpdatedAt).UTC()}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).Omit("Lines").Create(&header).Error; err != nil {
			return fmt.Errorf("upsert cart: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.CartLine{}).Error; err != nil {
			return fmt.Errorf("clear cart lines: %w", err)
		}
		if len(lines) == 0 {
			return nil
		}
		if err := tx.Create(&lines).Error; err != nil {
			return fmt.Errorf("insert cart lines: %w", err)
		}
		return nil
	})
}

func (s *DBStore) find(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var rec models.Cart
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ?", userID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type redisCartClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CartKey(userID string) string
}

// RedisStore keeps each cart as one JSON record. Records never expire.
type RedisStore struct {
	client redisCartClient
	logg   *logger.Logger
	now    func() time.Time
}

func NewRedisStore(client redisCartClient, logg *logger.Logger) *RedisStore {
	return &RedisStore{client: client, logg: logg, now: time.Now}
}

// Get reads the user's cart. A missing record is created with SETNX so an
// unlocked first read never overwrites a cart written concurrently.
func (s *RedisStore) Get(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	key := s.client.CartKey(userID.String())
	raw, err := s.client.Get(ctx, key)
	if errors.Is(err, redislib.Nil) {
		fresh := NewServerCart(userID, s.now())
		payload, err := json.Marshal(fresh)
		if err != nil {
			return nil, fmt.Errorf("encode cart: %w", err)
		}
		created, err := s.client.SetNX(ctx, key, payload, 0)
		if err != nil {
			return nil, fmt.Errorf("create cart: %w", err)
		}
		if created {
			return fresh, nil
		}
		raw, err = s.client.Get(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return s.decode(ctx, userID, raw), nil
}

func (s *RedisStore) decode(ctx context.Context, userID uuid.UUID, raw string) *Cart {
	var rec Cart
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		warnCorrupt(ctx, s.logg, userID, "redis", err)
		return NewServerCart(userID, s.now())
	}
	if rec.UserID != nil && *rec.UserID != userID {
		warnCorrupt(ctx, s.logg, userID, "redis", fmt.Errorf("record owned by %s", *rec.UserID))
		return NewServerCart(userID, s.now())
	}
	if rec.Normalize() {
		warnCorrupt(ctx, s.logg, userID, "redis", nil)
	}
	id := userID
	rec.UserID = &id
	return &rec
}

func (s *RedisStore) Put(ctx context.Context, userID uuid.UUID, cart *Cart) error {
	c := cart.Clone()
	c.Normalize()
	id := userID
	c.UserID = &id
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.client.Set(ctx, s.client.CartKey(userID.String()), payload, 0); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// MemoryStore is a process-local Store for tests and single-instance development.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*Cart
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[uuid.UUID]*Cart), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		c = NewServerCart(userID, s.now())
		s.carts[userID] = c
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, userID uuid.UUID, cart *Cart) error {
	c := cart.Clone()
	c.Normalize()
	id := userID
	c.UserID = &id
	s.mu.Lock()
	s.carts[userID] = c
	s.mu.Unlock()
	return nil
}

func warnCorrupt(ctx context.Context, logg *logger.Logger, userID uuid.UUID, backend string, cause error) {
	if logg == nil {
		return
	}
	fields := map[string]any{"user_id": userID.String(), "backend": backend}
	if cause != nil {
		fields["cause"] = cause.Error()
	}
	logg.Warn(logg.WithFields(ctx, fields), "cart.store.corrupt_record")
}
