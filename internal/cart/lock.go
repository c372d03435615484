package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// Locker serializes read-modify-write cycles on one user's cart.
type Locker interface {
	Lock(ctx context.Context, userID uuid.UUID) (unlock func(), err error)
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits on them.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[uuid.UUID]*lockEntry)}
}

func (l *LocalLocker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(userID, e)
		})
	}, nil
}

func (l *LocalLocker) release(userID uuid.UUID, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, userID)
	}
	l.mu.Unlock()
}

type lockClient interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	CartLockKey(userID string) string
}

var errLockHeld = errors.New("cart lock held")

// RedisLocker coordinates cart writers across API instances with a
// token-tagged SET NX key. The TTL bounds how long a crashed holder blocks others.
type RedisLocker struct {
	client lockClient
	ttl    time.Duration
	wait   time.Duration
	logg   *logger.Logger
}

func NewRedisLocker(client lockClient, ttl, wait time.Duration, logg *logger.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, logg: logg}
}

func (l *RedisLocker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	key := l.client.CartLockKey(userID.String())
	token := uuid.NewString()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := l.client.AcquireLock(ctx, key, token, l.ttl)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errLockHeld
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxElapsedTime(l.wait))
	if err != nil {
		if errors.Is(err, errLockHeld) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is busy, retry shortly")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lock")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			held, err := l.client.ReleaseLock(releaseCtx, key, token)
			if l.logg == nil {
				return
			}
			if err != nil {
				l.logg.Error(l.logg.WithField(ctx, "lock_key", key), "cart.lock.release_failed", err)
			} else if !held {
				l.logg.Warn(l.logg.WithFields(ctx, map[string]any{"lock_key": key, "ttl": l.ttl.String()}), "cart.lock.expired_before_release")
			}
		})
	}, nil
}
