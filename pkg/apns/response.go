package apns

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/sideshow/apns2"
)

// Outcome is the delivery state of one device.
type Outcome string

const (
	// OutcomeDelivered: APNS accepted the notification (HTTP 200).
	OutcomeDelivered Outcome = "delivered"
	// OutcomeFailed: APNS answered with an error status.
	OutcomeFailed Outcome = "failed"
	// OutcomeTransportError: no HTTP response was received at all.
	OutcomeTransportError Outcome = "transport_error"
)

// ReasonUnknown is reported when no reason could be read from the response.
const ReasonUnknown = "Unknown"

// Response is the parsed result of one device request.
type Response struct {
	Token      string  `json:"token"`
	Outcome    Outcome `json:"outcome"`
	StatusCode int     `json:"status,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	// Timestamp is set only when APNS includes one, typically with
	// Unregistered: the last time the token was known to be valid.
	Timestamp *int64 `json:"timestamp,omitempty"`
	ApnsID    string `json:"apns_id,omitempty"`
	UniqueID  string `json:"apns_unique_id,omitempty"`

	Err            error  `json:"-"`
	TransportError string `json:"transport_error,omitempty"`
}

type errorBody struct {
	Reason    string          `json:"reason"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Parse decodes the raw header block and body APNS returned for token.
// It never fails: an unreadable error body yields ReasonUnknown.
func Parse(token string, rawHeaders, rawBody []byte) *Response {
	r := &Response{Token: token, Outcome: OutcomeFailed}

	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(rawHeaders)))
	if line, err := tp.ReadLine(); err == nil {
		r.StatusCode = statusFromLine(line)
		// a truncated block still yields the fields read so far
		hdr, _ := tp.ReadMIMEHeader()
		r.ApnsID = hdr.Get("apns-id")
		r.UniqueID = hdr.Get("apns-unique-id")
	}

	if r.StatusCode == apns2.StatusSent {
		r.Outcome = OutcomeDelivered
		return r
	}

	var body errorBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		r.Reason = ReasonUnknown
		return r
	}
	r.Reason = body.Reason
	if r.Reason == "" {
		r.Reason = ReasonUnknown
	}
	r.Timestamp = parseTimestamp(body.Timestamp)
	return r
}

// parseTimestamp drops a missing, null or non-integer timestamp without
// affecting the reason.
func parseTimestamp(raw json.RawMessage) *int64 {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var ts int64
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil
	}
	return &ts
}

// transportFailure records a request that produced no HTTP response.
func transportFailure(token string, err error) *Response {
	return &Response{
		Token:          token,
		Outcome:        OutcomeTransportError,
		Reason:         ReasonUnknown,
		Err:            err,
		TransportError: err.Error(),
	}
}

// statusFromLine reads the code out of "HTTP/2 200" or "HTTP/1.1 410 Gone".
func statusFromLine(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") || len(fields[1]) != 3 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// Sent reports whether APNS accepted the notification.
func (r *Response) Sent() bool {
	return r.Outcome == OutcomeDelivered
}

// Time returns Timestamp as a time, or the zero time when absent.
func (r *Response) Time() time.Time {
	if r.Timestamp == nil {
		return time.Time{}
	}
	return time.Unix(*r.Timestamp, 0)
}

// IsTokenInvalid reports whether the failure means the token should not be used again.
func (r *Response) IsTokenInvalid() bool {
	if r.Outcome != OutcomeFailed {
		return false
	}
	switch r.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered,
		apns2.ReasonDeviceTokenNotForTopic, apns2.ReasonMissingDeviceToken:
		return true
	}
	return false
}

// Description is a human readable form of the reason.
func (r *Response) Description() string {
	switch r.Outcome {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeTransportError:
		return "transport error: " + r.TransportError
	}
	if msg, ok := reasons[r.Reason]; ok {
		return msg
	}
	if msg := http.StatusText(r.StatusCode); msg != "" {
		return msg
	}
	return r.Reason
}

var reasons = map[string]string{
	"BadCollapseId":               "The collapse identifier exceeds the maximum allowed size.",
	"BadDeviceToken":              "The specified device token is invalid.",
	"BadExpirationDate":           "The apns-expiration value is invalid.",
	"BadMessageId":                "The apns-id value is invalid.",
	"BadPriority":                 "The apns-priority value is invalid.",
	"BadTopic":                    "The apns-topic value is invalid.",
	"DeviceTokenNotForTopic":      "The device token doesn't match the specified topic.",
	"DuplicateHeaders":            "One or more headers are repeated.",
	"IdleTimeout":                 "Idle timeout.",
	"InvalidPushType":             "The apns-push-type value is invalid.",
	"MissingDeviceToken":          "The device token isn't specified in the request :path.",
	"MissingTopic":                "The apns-topic header is missing and is required for this certificate.",
	"PayloadEmpty":                "The message payload is empty.",
	"TopicDisallowed":             "Pushing to this topic is not allowed.",
	"BadCertificate":              "The certificate is invalid.",
	"BadCertificateEnvironment":   "The client certificate is for the wrong environment.",
	"ExpiredProviderToken":        "The provider token is stale.",
	"Forbidden":                   "The specified action is not allowed.",
	"InvalidProviderToken":        "The provider token is not valid.",
	"MissingProviderToken":        "No provider certificate was used and no provider token was specified.",
	"BadPath":                     "The request contained an invalid :path value.",
	"MethodNotAllowed":            "The specified :method value isn't POST.",
	"ExpiredToken":                "The device token has expired.",
	"Unregistered":                "The device token is inactive for the specified topic.",
	"PayloadTooLarge":             "The message payload is too large.",
	"TooManyProviderTokenUpdates": "The provider's authentication token is being updated too often.",
	"TooManyRequests":             "Too many requests were made consecutively to the same device token.",
	"InternalServerError":         "An internal server error occurred.",
	"ServiceUnavailable":          "The service is unavailable.",
	"Shutdown":                    "The APNs server is shutting down.",
}
