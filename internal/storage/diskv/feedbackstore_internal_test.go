package diskv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

var _ dispatch.FeedbackStore = (*FeedbackStore)(nil)

func TestSplit2X2Transform(t *testing.T) {
	assert.Equal(t, []string{"ab", "cd"}, Split2X2Transform("abcdef"))
	assert.Equal(t, []string{"00", "0a"}, Split2X2Transform("a"))
}

func TestFeedbackStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	newStore := func(t *testing.T, ttl time.Duration) (*FeedbackStore, string) {
		dir := t.TempDir()
		s := NewFeedbackStore(dir, ttl)
		s.now = func() time.Time { return now }
		return s, dir
	}

	t.Run("Happy Path - mark, look up, clear", func(t *testing.T) {
		store, dir := newStore(t, 0)

		err := store.MarkInvalid(ctx, dispatch.Invalidation{Token: "abcdef01", Reason: "Unregistered"})
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(dir, "ab", "cd", "abcdef01"))
		require.NoError(t, err)

		inv, err := store.Lookup(ctx, "abcdef01")
		require.NoError(t, err)
		require.NotNil(t, inv)
		assert.Equal(t, "Unregistered", inv.Reason)
		assert.True(t, now.Equal(inv.RecordedAt))

		invalid, err := store.IsInvalid(ctx, "abcdef01")
		require.NoError(t, err)
		assert.True(t, invalid)

		require.NoError(t, store.Clear(ctx, "abcdef01"))
		invalid, err = store.IsInvalid(ctx, "abcdef01")
		require.NoError(t, err)
		assert.False(t, invalid)
	})

	t.Run("Unknown token is valid and clearing it is fine", func(t *testing.T) {
		store, _ := newStore(t, 0)

		invalid, err := store.IsInvalid(ctx, "ffff")
		require.NoError(t, err)
		assert.False(t, invalid)
		assert.NoError(t, store.Clear(ctx, "ffff"))
	})

	t.Run("Expired records are dropped", func(t *testing.T) {
		store, _ := newStore(t, time.Hour)
		err := store.MarkInvalid(ctx, dispatch.Invalidation{Token: "abcd", RecordedAt: now.Add(-2 * time.Hour)})
		require.NoError(t, err)

		invalid, err := store.IsInvalid(ctx, "abcd")

		require.NoError(t, err)
		assert.False(t, invalid)
		assert.False(t, store.db.Has("abcd"))
	})

	t.Run("Path-like tokens are rejected", func(t *testing.T) {
		store, _ := newStore(t, 0)

		assert.Error(t, store.MarkInvalid(ctx, dispatch.Invalidation{Token: "../etc"}))
		_, err := store.IsInvalid(ctx, "")
		assert.Error(t, err)
	})
}
