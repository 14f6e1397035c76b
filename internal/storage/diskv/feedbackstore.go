// Package diskv keeps APNS token feedback on the local filesystem.
package diskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/peterbourgon/diskv/v3"
	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

// Split2X2Transform splits key into a path like /00/01 for a key of "0001".
// The key will be prefixed with zeros if its length is less than 4.
func Split2X2Transform(key string) []string {
	if len(key) < 4 {
		key = strings.Repeat("0", 4-len(key)) + key
	}
	return []string{key[0:2], key[2:4]}
}

// FeedbackStore is a dispatch.FeedbackStore backed by diskv. Records older
// than the ttl are treated as absent and removed on read; a zero ttl keeps
// them forever.
type FeedbackStore struct {
	db  *diskv.Diskv
	ttl time.Duration
	now func() time.Time
}

func NewFeedbackStore(path string, ttl time.Duration) *FeedbackStore {
	return &FeedbackStore{
		db: diskv.New(diskv.Options{
			BasePath:     path,
			Transform:    Split2X2Transform,
			CacheSizeMax: 1024 * 1024,
		}),
		ttl: ttl,
		now: time.Now,
	}
}

func (s *FeedbackStore) MarkInvalid(_ context.Context, inv dispatch.Invalidation) error {
	if err := checkKey(inv.Token); err != nil {
		return err
	}
	if inv.RecordedAt.IsZero() {
		inv.RecordedAt = s.now().UTC()
	}
	raw, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	if err := s.db.Write(inv.Token, raw); err != nil {
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
	if err := checkKey(token); err != nil {
		return nil, err
	}
	raw, err := s.db.Read(token)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token feedback: %w", err)
	}
	var inv dispatch.Invalidation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("corrupt token feedback for %s: %w", token, err)
	}
	if s.ttl > 0 && s.now().Sub(inv.RecordedAt) > s.ttl {
		return nil, s.Clear(ctx, token)
	}
	return &inv, nil
}

func (s *FeedbackStore) Clear(_ context.Context, token string) error {
	if err := checkKey(token); err != nil {
		return err
	}
	if err := s.db.Erase(token); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func checkKey(token string) error {
	if token == "" || token == "." || token == ".." || strings.ContainsAny(token, `/\`) {
		return fmt.Errorf("invalid token %q", token)
	}
	return nil
}
