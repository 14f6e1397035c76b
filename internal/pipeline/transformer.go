// Package pipeline turns a raw batch document into a dispatched APNS batch.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sideshow/apns2"
	"github.com/tinywideclouds/go-apns-pusher/pkg/apns"
)

// ErrInvalidBatch marks documents that can never be sent as written.
var ErrInvalidBatch = errors.New("invalid batch")

// BatchDocument is the JSON form of one batch: a notification and its targets.
type BatchDocument struct {
	Alert            apns.Alert     `json:"alert"`
	Sound            string         `json:"sound,omitempty"`
	Badge            *int           `json:"badge,omitempty"`
	ContentAvailable bool           `json:"content_available,omitempty"`
	MutableContent   bool           `json:"mutable_content,omitempty"`
	Category         string         `json:"category,omitempty"`
	ThreadID         string         `json:"thread_id,omitempty"`
	Custom           map[string]any `json:"custom,omitempty"`

	Topic      string `json:"topic,omitempty"`
	Priority   int    `json:"priority,omitempty"`
	Expiration *int64 `json:"expiration,omitempty"`
	PushType   string `json:"push_type,omitempty"`
	CollapseID string `json:"collapse_id,omitempty"`
	ID         string `json:"id,omitempty"`

	Devices []apns.Device `json:"devices"`
}

// BatchRequest is a validated batch ready for dispatch.
type BatchRequest struct {
	Message *apns.Message
	Devices *apns.Devices
}

// BatchRequestTransformer decodes and validates a raw batch document.
func BatchRequestTransformer(_ context.Context, raw []byte) (*BatchRequest, error) {
	var doc BatchDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal batch document: %w", ErrInvalidBatch, err)
	}

	opts, err := doc.messageOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	msg, err := apns.NewMessage(doc.Alert, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: message: %w", ErrInvalidBatch, err)
	}
	devices, err := apns.NewDevices(doc.Devices...)
	if err != nil {
		return nil, fmt.Errorf("%w: devices: %w", ErrInvalidBatch, err)
	}
	return &BatchRequest{Message: msg, Devices: devices}, nil
}

func (doc *BatchDocument) messageOptions() ([]apns.MessageOption, error) {
	var opts []apns.MessageOption
	if doc.Sound != "" {
		opts = append(opts, apns.WithSound(doc.Sound))
	}
	if doc.Badge != nil {
		opts = append(opts, apns.WithBadge(*doc.Badge))
	}
	if doc.ContentAvailable {
		opts = append(opts, apns.WithContentAvailable())
	}
	if doc.MutableContent {
		opts = append(opts, apns.WithMutableContent())
	}
	if doc.Category != "" {
		opts = append(opts, apns.WithCategory(doc.Category))
	}
	if doc.ThreadID != "" {
		opts = append(opts, apns.WithThreadID(doc.ThreadID))
	}
	for k, v := range doc.Custom {
		opts = append(opts, apns.WithCustom(k, v))
	}
	if doc.Topic != "" {
		opts = append(opts, apns.WithTopic(doc.Topic))
	}
	if doc.Priority != 0 {
		opts = append(opts, apns.WithPriority(doc.Priority))
	}
	if doc.Expiration != nil {
		var at time.Time
		if *doc.Expiration > 0 {
			at = time.Unix(*doc.Expiration, 0)
		}
		opts = append(opts, apns.WithExpiration(at))
	}
	if doc.PushType != "" {
		opts = append(opts, apns.WithPushType(apns2.EPushType(doc.PushType)))
	}
	if doc.CollapseID != "" {
		opts = append(opts, apns.WithCollapseID(doc.CollapseID))
	}
	if doc.ID != "" {
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("id %q: %w", doc.ID, err)
		}
		opts = append(opts, apns.WithNotificationID(id))
	}
	return opts, nil
}
