// Package firestore keeps APNS token feedback in Google Cloud Firestore.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

// DefaultCollection is the root collection for invalid token records.
const DefaultCollection = "apns_invalid_tokens"

// FeedbackStore implements dispatch.FeedbackStore using Google Cloud Firestore.
// Records older than the ttl are treated as absent and deleted on read; a
// zero ttl keeps them forever.
type FeedbackStore struct {
	client     *firestore.Client
	collection string
	ttl        time.Duration
	now        func() time.Time
}

func NewFeedbackStore(client *firestore.Client, collection string, ttl time.Duration) *FeedbackStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FeedbackStore{
		client:     client,
		collection: collection,
		ttl:        ttl,
		now:        time.Now,
	}
}

// invalidRecord is the internal DB representation.
type invalidRecord struct {
	Token      string     `firestore:"token"`
	Reason     string     `firestore:"reason"`
	LastValid  *time.Time `firestore:"last_valid,omitempty"`
	RecordedAt time.Time  `firestore:"recorded_at"`
}

func (s *FeedbackStore) MarkInvalid(ctx context.Context, inv dispatch.Invalidation) error {
	record := invalidRecord{
		Token:      inv.Token,
		Reason:     inv.Reason,
		LastValid:  inv.LastValid,
		RecordedAt: inv.RecordedAt,
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = s.now().UTC()
	}
	if _, err := s.docRef(inv.Token).Set(ctx, record); err != nil {
		return fmt.Errorf("failed to record invalid token: %w", err)
	}
	return nil
}

func (s *FeedbackStore) IsInvalid(ctx context.Context, token string) (bool, error) {
	inv, err := s.Lookup(ctx, token)
	return inv != nil, err
}

// Lookup returns the stored record for token, or nil when there is none.
func (s *FeedbackStore) Lookup(ctx context.Context, token string) (*dispatch.Invalidation, error) {
	doc, err := s.docRef(token).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("firestore lookup failed: %w", err)
	}
	var record invalidRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("corrupt token feedback for %s: %w", token, err)
	}
	if s.expired(record.RecordedAt) {
		return nil, s.Clear(ctx, token)
	}
	return &dispatch.Invalidation{
		Token:      record.Token,
		Reason:     record.Reason,
		LastValid:  record.LastValid,
		RecordedAt: record.RecordedAt,
	}, nil
}

func (s *FeedbackStore) expired(recordedAt time.Time) bool {
	return s.ttl > 0 && s.now().Sub(recordedAt) > s.ttl
}

// Clear removes the record. Deleting a missing document is not an error.
func (s *FeedbackStore) Clear(ctx context.Context, token string) error {
	_, err := s.docRef(token).Delete(ctx)
	return err
}

// Close releases the underlying client.
func (s *FeedbackStore) Close() error {
	return s.client.Close()
}

// docRef: {collection}/{tokenHash}
func (s *FeedbackStore) docRef(token string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(hashToken(token))
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
