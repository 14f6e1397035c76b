// Package dispatch holds the contracts shared by the push pipeline and its
// backends.
package dispatch

import (
	"context"
	"time"

	"github.com/tinywideclouds/go-apns-pusher/pkg/apns"
)

// Sender delivers one message to a batch of devices. *apns.Client implements it.
type Sender interface {
	Send(ctx context.Context, msg *apns.Message, devices *apns.Devices) (*apns.Results, error)
	Close() error
}

// Invalidation records that APNS rejected a token as unusable.
type Invalidation struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
	// LastValid is the APNS timestamp, when one was given.
	LastValid  *time.Time `json:"last_valid,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// FeedbackStore remembers tokens APNS reported as invalid so later batches
// can skip them.
type FeedbackStore interface {
	MarkInvalid(ctx context.Context, inv Invalidation) error
	IsInvalid(ctx context.Context, token string) (bool, error)
	Clear(ctx context.Context, token string) error
}

// InvalidationFromResponse converts a failed response into an Invalidation.
func InvalidationFromResponse(r *apns.Response, now time.Time) Invalidation {
	inv := Invalidation{Token: r.Token, Reason: r.Reason, RecordedAt: now.UTC()}
	if r.Timestamp != nil {
		t := r.Time().UTC()
		inv.LastValid = &t
	}
	return inv
}

// NopFeedbackStore forgets everything.
type NopFeedbackStore struct{}

func (NopFeedbackStore) MarkInvalid(context.Context, Invalidation) error { return nil }

func (NopFeedbackStore) IsInvalid(context.Context, string) (bool, error) { return false, nil }

func (NopFeedbackStore) Clear(context.Context, string) error { return nil }
