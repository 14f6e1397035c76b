package firestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeedbackStore_Expired(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("TTL applies against RecordedAt", func(t *testing.T) {
		s := NewFeedbackStore(nil, "", time.Hour)
		s.now = clock

		assert.False(t, s.expired(now.Add(-30*time.Minute)))
		assert.False(t, s.expired(now.Add(-time.Hour)))
		assert.True(t, s.expired(now.Add(-61*time.Minute)))
	})

	t.Run("Zero TTL keeps records forever", func(t *testing.T) {
		s := NewFeedbackStore(nil, "", 0)
		s.now = clock

		assert.False(t, s.expired(now.AddDate(-5, 0, 0)))
	})

	t.Run("Empty collection uses the default", func(t *testing.T) {
		s := NewFeedbackStore(nil, "", 0)

		assert.Equal(t, DefaultCollection, s.collection)
	})
}
