package pipeline

import (
	"context"
	"log/slog"
	"time"

	apnsdispatch "github.com/tinywideclouds/go-apns-pusher/internal/platform/apns"
	"github.com/tinywideclouds/go-apns-pusher/pkg/apns"
	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

// BatchDispatcher is implemented by the APNS dispatcher.
type BatchDispatcher interface {
	Dispatch(ctx context.Context, msg *apns.Message, devices *apns.Devices) (apnsdispatch.Receipt, []*apns.Response, *apns.Results, error)
}

type ProcessorOptions struct {
	// SkipKnownInvalid drops tokens the feedback store already holds before sending.
	SkipKnownInvalid bool
}

// Report is what one processed batch produced. Results are aligned with
// the devices that were actually sent, which excludes Skipped.
type Report struct {
	Receipt apnsdispatch.Receipt `json:"receipt"`
	Results *apns.Results        `json:"results"`
	Skipped []string             `json:"skipped,omitempty"`
}

// BatchProcessor handles one decoded batch.
type BatchProcessor func(ctx context.Context, req *BatchRequest) (*Report, error)

// NewProcessor wires the dispatcher to the feedback store: known-bad tokens
// can be filtered out up front, and tokens APNS rejects are recorded after.
func NewProcessor(
	dispatcher BatchDispatcher,
	store dispatch.FeedbackStore,
	opts ProcessorOptions,
	logger *slog.Logger,
) BatchProcessor {
	return func(ctx context.Context, req *BatchRequest) (*Report, error) {
		procLogger := logger.With("component", "BatchProcessor", "devices", req.Devices.Len())
		report := &Report{}

		// 1. Filter
		devices := req.Devices
		if opts.SkipKnownInvalid {
			devices, report.Skipped = filterKnownInvalid(ctx, req.Devices, store, procLogger)
		}

		// 2. Dispatch
		receipt, invalid, results, err := dispatcher.Dispatch(ctx, req.Message, devices)
		if err != nil {
			procLogger.Error("APNs Dispatch failed", "err", err)
			return nil, err
		}
		report.Receipt = receipt
		report.Results = results
		if results == nil {
			report.Results = apns.NewResults()
		}

		// 3. Self-Healing
		if len(invalid) > 0 {
			procLogger.Info("Recording invalid APNs tokens", "count", len(invalid))
			now := time.Now()
			for _, res := range invalid {
				if err := store.MarkInvalid(ctx, dispatch.InvalidationFromResponse(res, now)); err != nil {
					procLogger.Warn("Failed to record invalid token", "token", res.Token, "err", err)
				}
			}
		}

		procLogger.Info("APNs Dispatched", "receipt", receipt.String(), "skipped", len(report.Skipped))
		return report, nil
	}
}

// filterKnownInvalid keeps a device when the store says it is fine or
// cannot answer.
func filterKnownInvalid(
	ctx context.Context,
	devices *apns.Devices,
	store dispatch.FeedbackStore,
	logger *slog.Logger,
) (*apns.Devices, []string) {
	kept, _ := apns.NewDevices()
	var skipped []string
	for _, d := range devices.All() {
		invalid, err := store.IsInvalid(ctx, d.Token)
		if err != nil {
			logger.Warn("Feedback lookup failed; sending anyway", "token", d.Token, "err", err)
		}
		if invalid {
			skipped = append(skipped, d.Token)
			continue
		}
		// already validated when the batch was built
		_ = kept.Add(d)
	}
	return kept, skipped
}
