package apns

import "encoding/json"

// Results holds one Response per device, index-aligned with the devices
// that were sent: At(i) belongs to the i-th device.
type Results struct {
	items []*Response
}

func newResults(capacity int) *Results {
	return &Results{items: make([]*Response, 0, capacity)}
}

// NewResults wraps responses that were collected elsewhere, such as by
// another Sender implementation.
func NewResults(responses ...*Response) *Results {
	r := newResults(len(responses))
	r.items = append(r.items, responses...)
	return r
}

func (r *Results) append(resp *Response) {
	r.items = append(r.items, resp)
}

func (r *Results) Len() int { return len(r.items) }

func (r *Results) At(i int) *Response { return r.items[i] }

// All returns the responses in send order.
func (r *Results) All() []*Response {
	out := make([]*Response, len(r.items))
	copy(out, r.items)
	return out
}

// Delivered returns the responses APNS accepted.
func (r *Results) Delivered() []*Response {
	return r.filter(func(resp *Response) bool { return resp.Sent() })
}

// Failed returns every response that was not delivered, transport errors included.
func (r *Results) Failed() []*Response {
	return r.filter(func(resp *Response) bool { return !resp.Sent() })
}

// InvalidTokens lists tokens APNS rejected as unusable, in send order.
func (r *Results) InvalidTokens() []string {
	var tokens []string
	for _, resp := range r.items {
		if resp.IsTokenInvalid() {
			tokens = append(tokens, resp.Token)
		}
	}
	return tokens
}

func (r *Results) filter(keep func(*Response) bool) []*Response {
	var out []*Response
	for _, resp := range r.items {
		if keep(resp) {
			out = append(out, resp)
		}
	}
	return out
}

func (r *Results) MarshalJSON() ([]byte, error) {
	if r.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.items)
}
