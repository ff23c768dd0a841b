package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when a lock could not be obtained in time.
var ErrBusy = errors.New("lock busy")

// Locker serialises writers of one balance (stock pair, ledger).
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(), err error)
}

// Key builds a lock key from parts.
func Key(kind string, parts ...string) string {
	k := kind
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Held is the set of keys one transaction owns. Keys stay held until Release,
// which the transaction runner calls after commit or rollback.
type Held struct {
	locker   Locker
	mu       sync.Mutex
	order    []string
	releases map[string]func()
}

func NewHeld(l Locker) *Held {
	return &Held{locker: l, releases: make(map[string]func())}
}

// Obtain takes the keys in sorted order, skipping those already held.
func (h *Held) Obtain(ctx context.Context, keys ...string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range sorted {
		if _, ok := h.releases[key]; ok {
			continue
		}
		release, err := h.locker.Obtain(ctx, key)
		if err != nil {
			return err
		}
		h.releases[key] = release
		h.order = append(h.order, key)
	}
	return nil
}

// Holds reports whether key is held.
func (h *Held) Holds(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.releases[key]
	return ok
}

// Release frees every key, newest first.
func (h *Held) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.order) - 1; i >= 0; i-- {
		h.releases[h.order[i]]()
	}
	h.order = nil
	h.releases = make(map[string]func())
}

type heldKey struct{}

// WithHeld attaches h to ctx.
func WithHeld(ctx context.Context, h *Held) context.Context {
	return context.WithValue(ctx, heldKey{}, h)
}

// HeldFrom returns the set attached by WithHeld.
func HeldFrom(ctx context.Context) (*Held, bool) {
	if ctx == nil {
		return nil, false
	}
	h, ok := ctx.Value(heldKey{}).(*Held)
	return h, ok
}

// LocalLocker is an in-process keyed mutex for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

func (l *LocalLocker) Obtain(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrBusy, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// RedisLocker uses redislock so postings stay single-writer across instances.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(25*time.Millisecond), 400),
	}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (func(), error) {
	lk, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrBusy, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// a fresh context so an expired request context still releases the key
		_ = lk.Release(context.Background())
	}, nil
}
