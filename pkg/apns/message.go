package apns

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
)

// Alert is the user-visible content of a notification. At least one field must be set.
type Alert struct {
	Title        string   `json:"title,omitempty"`
	Subtitle     string   `json:"subtitle,omitempty"`
	Body         string   `json:"body,omitempty"`
	LaunchImage  string   `json:"launch_image,omitempty"`
	LocKey       string   `json:"loc_key,omitempty"`
	LocArgs      []string `json:"loc_args,omitempty"`
	TitleLocKey  string   `json:"title_loc_key,omitempty"`
	TitleLocArgs []string `json:"title_loc_args,omitempty"`
}

func (a Alert) empty() bool {
	return a.Title == "" && a.Subtitle == "" && a.Body == "" && a.LaunchImage == "" &&
		a.LocKey == "" && len(a.LocArgs) == 0 && a.TitleLocKey == "" && len(a.TitleLocArgs) == 0
}

// bodyOnly alerts go out in the short string form.
func (a Alert) bodyOnly() bool {
	return a.Body != "" && a.Title == "" && a.Subtitle == "" && a.LaunchImage == "" &&
		a.LocKey == "" && len(a.LocArgs) == 0 && a.TitleLocKey == "" && len(a.TitleLocArgs) == 0
}

// Message is the device independent part of a notification: the base payload
// tree and the fixed request headers. It is read-only once built.
type Message struct {
	payload map[string]any
	headers http.Header
}

type messageBuilder struct {
	aps     *payload.Payload
	headers http.Header
}

// MessageOption customises a Message under construction.
type MessageOption func(*messageBuilder) error

// WithSound sets the default aps.sound; a Device sound overrides it.
func WithSound(sound string) MessageOption {
	return func(b *messageBuilder) error {
		b.aps.Sound(sound)
		return nil
	}
}

// WithBadge sets the default aps.badge; a positive Device badge overrides it.
func WithBadge(badge int) MessageOption {
	return func(b *messageBuilder) error {
		if badge < 0 {
			return &ValidationError{Field: "badge", Reason: "must not be negative"}
		}
		b.aps.Badge(badge)
		return nil
	}
}

func WithContentAvailable() MessageOption {
	return func(b *messageBuilder) error {
		b.aps.ContentAvailable()
		return nil
	}
}

func WithMutableContent() MessageOption {
	return func(b *messageBuilder) error {
		b.aps.MutableContent()
		return nil
	}
}

func WithCategory(category string) MessageOption {
	return func(b *messageBuilder) error {
		b.aps.Category(category)
		return nil
	}
}

func WithThreadID(threadID string) MessageOption {
	return func(b *messageBuilder) error {
		b.aps.ThreadID(threadID)
		return nil
	}
}

// WithCustom adds a top-level field next to aps.
func WithCustom(key string, value any) MessageOption {
	return func(b *messageBuilder) error {
		if key == "" || key == "aps" {
			return &ValidationError{Field: "custom", Reason: "key " + strconv.Quote(key) + " is reserved"}
		}
		b.aps.Custom(key, value)
		return nil
	}
}

// WithTopic sets apns-topic, normally the app bundle ID.
func WithTopic(topic string) MessageOption {
	return func(b *messageBuilder) error {
		b.headers.Set("apns-topic", topic)
		return nil
	}
}

// WithPriority sets apns-priority to 5 or 10.
func WithPriority(priority int) MessageOption {
	return func(b *messageBuilder) error {
		if priority != apns2.PriorityLow && priority != apns2.PriorityHigh {
			return &ValidationError{Field: "priority", Reason: "must be 5 or 10"}
		}
		b.headers.Set("apns-priority", strconv.Itoa(priority))
		return nil
	}
}

// WithExpiration sets apns-expiration. The zero time means "deliver once or drop".
func WithExpiration(at time.Time) MessageOption {
	return func(b *messageBuilder) error {
		var epoch int64
		if !at.IsZero() {
			epoch = at.Unix()
		}
		b.headers.Set("apns-expiration", strconv.FormatInt(epoch, 10))
		return nil
	}
}

func WithPushType(pushType apns2.EPushType) MessageOption {
	return func(b *messageBuilder) error {
		b.headers.Set("apns-push-type", string(pushType))
		return nil
	}
}

func WithCollapseID(id string) MessageOption {
	return func(b *messageBuilder) error {
		if len(id) > 64 {
			return &ValidationError{Field: "collapse_id", Reason: "longer than 64 bytes"}
		}
		b.headers.Set("apns-collapse-id", id)
		return nil
	}
}

// WithNotificationID sets apns-id; APNS echoes it back in the response.
func WithNotificationID(id uuid.UUID) MessageOption {
	return func(b *messageBuilder) error {
		if id == uuid.Nil {
			return &ValidationError{Field: "id", Reason: "nil uuid"}
		}
		b.headers.Set("apns-id", id.String())
		return nil
	}
}

// NewMessage builds the payload template and header set for one send.
func NewMessage(alert Alert, opts ...MessageOption) (*Message, error) {
	if alert.empty() {
		return nil, &ValidationError{Field: "alert", Reason: "alert content is required"}
	}
	b := &messageBuilder{
		aps:     payload.NewPayload(),
		headers: http.Header{},
	}
	b.headers.Set("Content-Type", "application/json")
	applyAlert(b.aps, alert)
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	raw, err := json.Marshal(b.aps)
	if err != nil {
		return nil, &ValidationError{Field: "payload", Reason: "cannot encode", Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, &ValidationError{Field: "payload", Reason: "cannot decode", Err: err}
	}
	return &Message{payload: tree, headers: b.headers}, nil
}

func applyAlert(p *payload.Payload, a Alert) {
	if a.bodyOnly() {
		p.Alert(a.Body)
		return
	}
	if a.Title != "" {
		p.AlertTitle(a.Title)
	}
	if a.Subtitle != "" {
		p.AlertSubtitle(a.Subtitle)
	}
	if a.Body != "" {
		p.AlertBody(a.Body)
	}
	if a.LaunchImage != "" {
		p.AlertLaunchImage(a.LaunchImage)
	}
	if a.LocKey != "" {
		p.AlertLocKey(a.LocKey)
	}
	if len(a.LocArgs) > 0 {
		p.AlertLocArgs(a.LocArgs)
	}
	if a.TitleLocKey != "" {
		p.AlertTitleLocKey(a.TitleLocKey)
	}
	if len(a.TitleLocArgs) > 0 {
		p.AlertTitleLocArgs(a.TitleLocArgs)
	}
}

// BasePayload returns a deep copy of the payload template.
func (m *Message) BasePayload() map[string]any {
	return cloneTree(m.payload).(map[string]any)
}

// Headers returns a copy of the fixed request headers.
func (m *Message) Headers() http.Header {
	return m.headers.Clone()
}

func cloneTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneTree(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneTree(val)
		}
		return out
	}
	return v
}
