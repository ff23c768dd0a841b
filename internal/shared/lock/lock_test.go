package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerialisesSameKey(t *testing.T) {
	l := NewLocalLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Obtain(context.Background(), Key("stock", "item", "branch"))
			require.NoError(t, err)
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.locks)
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Obtain(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Obtain(ctx, "k")
	assert.True(t, errors.Is(err, ErrBusy))
}

func TestLocalLockerDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	r1, err := l.Obtain(context.Background(), "a")
	require.NoError(t, err)
	r2, err := l.Obtain(context.Background(), "b")
	require.NoError(t, err)
	r1()
	r2()
	r2()
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ledger:CUSTOMER:c1", Key("ledger", "CUSTOMER", "c1"))
}

// recorder 记录取锁/释放顺序
type recorder struct {
	inner  Locker
	mu     sync.Mutex
	events []string
}

func (r *recorder) Obtain(ctx context.Context, key string) (func(), error) {
	release, err := r.inner.Obtain(ctx, key)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.events = append(r.events, "obtain "+key)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.events = append(r.events, "release "+key)
		r.mu.Unlock()
		release()
	}, nil
}

func TestHeldObtainsOnceInSortedOrder(t *testing.T) {
	rec := &recorder{inner: NewLocalLocker()}
	h := NewHeld(rec)
	ctx := context.Background()

	require.NoError(t, h.Obtain(ctx, "stock:b", "stock:a"))
	require.NoError(t, h.Obtain(ctx, "stock:a"))
	require.NoError(t, h.Obtain(ctx, "ledger:x", "stock:b"))
	assert.True(t, h.Holds("stock:a"))
	assert.False(t, h.Holds("stock:c"))

	h.Release()
	h.Release()
	assert.Equal(t, []string{
		"obtain stock:a", "obtain stock:b", "obtain ledger:x",
		"release ledger:x", "release stock:b", "release stock:a",
	}, rec.events)
}

func TestHeldBlocksOtherHolderUntilRelease(t *testing.T) {
	l := NewLocalLocker()
	first := NewHeld(l)
	require.NoError(t, first.Obtain(context.Background(), "stock:a"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	second := NewHeld(l)
	assert.True(t, errors.Is(second.Obtain(ctx, "stock:a"), ErrBusy))

	first.Release()
	require.NoError(t, second.Obtain(context.Background(), "stock:a"))
	second.Release()
	assert.Empty(t, l.locks)
}

func TestHeldFromContext(t *testing.T) {
	_, ok := HeldFrom(context.Background())
	assert.False(t, ok)
	h := NewHeld(NewLocalLocker())
	got, ok := HeldFrom(WithHeld(context.Background(), h))
	require.True(t, ok)
	assert.Same(t, h, got)
}
