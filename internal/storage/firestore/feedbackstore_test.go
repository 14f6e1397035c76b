//go:build integration

package firestore_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-apns-pusher/internal/storage/firestore"
	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

func setupSuite(t *testing.T) (context.Context, *firestore.Client, *fs.FeedbackStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-feedback-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)

	store := fs.NewFeedbackStore(client, "", 0)
	t.Cleanup(func() { _ = store.Close() })
	return ctx, client, store
}

func TestFeedbackStore_Integration(t *testing.T) {
	ctx, client, store := setupSuite(t)

	t.Run("Invalidation Lifecycle", func(t *testing.T) {
		lastValid := time.Unix(1600000000, 0).UTC()
		token := "aabbccdd"

		// 1. Unknown token
		invalid, err := store.IsInvalid(ctx, token)
		require.NoError(t, err)
		assert.False(t, invalid)

		// 2. Mark
		err = store.MarkInvalid(ctx, dispatch.Invalidation{Token: token, Reason: "Unregistered", LastValid: &lastValid})
		require.NoError(t, err)

		inv, err := store.Lookup(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, inv)
		assert.Equal(t, "Unregistered", inv.Reason)
		require.NotNil(t, inv.LastValid)
		assert.True(t, lastValid.Equal(*inv.LastValid))
		assert.False(t, inv.RecordedAt.IsZero())

		// 3. Clear
		require.NoError(t, store.Clear(ctx, token))
		invalid, err = store.IsInvalid(ctx, token)
		require.NoError(t, err)
		assert.False(t, invalid)
	})

	t.Run("Clearing an unknown token is fine", func(t *testing.T) {
		assert.NoError(t, store.Clear(ctx, "never-seen"))
	})

	t.Run("Records older than the TTL expire", func(t *testing.T) {
		expiring := fs.NewFeedbackStore(client, "", time.Hour)
		stale := "11223344"
		fresh := "55667788"

		// Arrange
		require.NoError(t, expiring.MarkInvalid(ctx, dispatch.Invalidation{
			Token:      stale,
			Reason:     "Unregistered",
			RecordedAt: time.Now().Add(-2 * time.Hour).UTC(),
		}))
		require.NoError(t, expiring.MarkInvalid(ctx, dispatch.Invalidation{Token: fresh, Reason: "BadDeviceToken"}))

		// Act & Assert
		inv, err := expiring.Lookup(ctx, stale)
		require.NoError(t, err)
		assert.Nil(t, inv)
		invalid, err := expiring.IsInvalid(ctx, fresh)
		require.NoError(t, err)
		assert.True(t, invalid)

		// the expired record was deleted, not just hidden
		inv, err = store.Lookup(ctx, stale)
		require.NoError(t, err)
		assert.Nil(t, inv)
	})
}
