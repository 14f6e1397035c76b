// Package apns adapts the certificate based APNS client to the push pipeline.
package apns

import (
	"context"
	"fmt"
	"log/slog"

	push "github.com/tinywideclouds/go-apns-pusher/pkg/apns"
	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

// Receipt summarises one dispatched batch.
type Receipt struct {
	Success int `json:"success"`
	Invalid int `json:"invalid"`
	Failed  int `json:"total_fail"`
}

func (r Receipt) String() string {
	return fmt.Sprintf("success:%d invalid:%d total_fail:%d", r.Success, r.Invalid, r.Failed)
}

type Dispatcher struct {
	sender dispatch.Sender
	logger *slog.Logger
}

// NewDispatcher wraps sender. The sender owns the APNS connection.
func NewDispatcher(sender dispatch.Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		logger: logger.With("component", "APNSDispatcher"),
	}
}

// Dispatch sends msg to every device and classifies the outcomes.
// The returned invalid responses are the ones whose token must not be used again.
// An error is returned only when the batch could not be sent at all.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	msg *push.Message,
	devices *push.Devices,
) (Receipt, []*push.Response, *push.Results, error) {
	if devices == nil || devices.Len() == 0 {
		return Receipt{}, nil, nil, nil
	}

	results, err := d.sender.Send(ctx, msg, devices)
	if err != nil {
		return Receipt{}, nil, nil, fmt.Errorf("apns batch failed: %w", err)
	}

	var receipt Receipt
	var invalid []*push.Response
	for _, res := range results.All() {
		switch {
		case res.Sent():
			receipt.Success++
		case res.Outcome == push.OutcomeTransportError:
			receipt.Failed++
			d.logger.Error("APNs transport failed", "token", res.Token, "err", res.Err)
		case res.IsTokenInvalid():
			receipt.Failed++
			invalid = append(invalid, res)
		default:
			// the token may be fine; the message or credentials are not
			receipt.Failed++
			d.logger.Warn("APNs rejected notification", "token", res.Token, "reason", res.Reason, "status", res.StatusCode)
		}
	}
	receipt.Invalid = len(invalid)

	d.logger.Info("APNs batch dispatched", "receipt", receipt.String())
	return receipt, invalid, results, nil
}
