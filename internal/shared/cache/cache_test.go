package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Get(ctx, "stock-summary:branch=b1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "stock-summary:branch=b1", []byte(`{"rows":[]}`), time.Minute))
	got, err := s.Get(ctx, "stock-summary:branch=b1")
	require.NoError(t, err)
	assert.Equal(t, `{"rows":[]}`, string(got))

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "stock-summary:branch=b1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStoreDel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Del(ctx, "a"))
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
}
