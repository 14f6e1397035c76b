// Package apnspusher assembles the APNS client, the feedback store and the
// batch pipeline into one runnable unit.
package apnspusher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/tinywideclouds/go-apns-pusher/apnspusher/config"
	"github.com/tinywideclouds/go-apns-pusher/internal/api"
	"github.com/tinywideclouds/go-apns-pusher/internal/pipeline"
	apnsdispatch "github.com/tinywideclouds/go-apns-pusher/internal/platform/apns"
	"github.com/tinywideclouds/go-apns-pusher/internal/storage/cache"
	"github.com/tinywideclouds/go-apns-pusher/internal/storage/diskv"
	fsStore "github.com/tinywideclouds/go-apns-pusher/internal/storage/firestore"
	"github.com/tinywideclouds/go-apns-pusher/pkg/apns"
	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

type Pusher struct {
	sender    dispatch.Sender
	store     dispatch.FeedbackStore
	processor pipeline.BatchProcessor
	root      *slog.Logger
	logger    *slog.Logger
}

// New assembles the service around an existing sender and feedback store.
func New(
	cfg *config.Config,
	sender dispatch.Sender,
	store dispatch.FeedbackStore,
	logger *slog.Logger,
) (*Pusher, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if store == nil {
		store = dispatch.NopFeedbackStore{}
	}

	dispatcher := apnsdispatch.NewDispatcher(sender, logger)
	processor := pipeline.NewProcessor(
		dispatcher,
		store,
		pipeline.ProcessorOptions{SkipKnownInvalid: cfg.SkipKnownInvalid},
		logger,
	)

	return &Pusher{
		sender:    sender,
		store:     store,
		processor: processor,
		root:      logger,
		logger:    logger.With("component", "Pusher"),
	}, nil
}

// Run decodes one raw batch document and sends it.
func (p *Pusher) Run(ctx context.Context, raw []byte) (*pipeline.Report, error) {
	req, err := pipeline.BatchRequestTransformer(ctx, raw)
	if err != nil {
		p.logger.Error("Rejected batch document", "err", err)
		return nil, err
	}
	return p.processor(ctx, req)
}

// reportTimeout bounds one Run when the caller gives no deadline.
const reportTimeout = 5 * time.Minute

// RunWithTimeout is Run with a default deadline.
func (p *Pusher) RunWithTimeout(ctx context.Context, raw []byte) (*pipeline.Report, error) {
	if _, ok := ctx.Deadline(); ok {
		return p.Run(ctx, raw)
	}
	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	return p.Run(ctx, raw)
}

// Handler serves the push and feedback API:
//
//	POST   /batches          run a batch document
//	GET    /feedback/{token} report whether a token is marked invalid
//	DELETE /feedback/{token} clear the mark
func (p *Pusher) Handler() http.Handler {
	mux := http.NewServeMux()
	p.RegisterRoutes(mux)
	return mux
}

// RegisterRoutes adds the API routes to an existing mux.
func (p *Pusher) RegisterRoutes(mux api.Router) {
	api.NewPushAPI(p, p.store, p.root).Register(mux)
}

// Close releases the sender's connection and the feedback store.
func (p *Pusher) Close() error {
	p.logger.Info("Shutting down pusher components...")
	var finalErr error
	if err := p.sender.Close(); err != nil {
		p.logger.Error("Sender shutdown failed.", "err", err)
		finalErr = err
	}
	if closer, ok := p.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error("Feedback store shutdown failed.", "err", err)
			finalErr = err
		}
	}
	return finalErr
}

// NewSender builds the certificate based APNS client described by cfg.
func NewSender(cfg *config.Config, logger *slog.Logger) (*apns.Client, error) {
	return apns.New(cfg.Environment, cfg.CertificatePath,
		apns.WithPassphrase(cfg.Passphrase),
		apns.WithLogger(logger),
		apns.WithDebug(cfg.Debug),
	)
}

// OpenFeedbackStore builds the configured feedback backend.
func OpenFeedbackStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dispatch.FeedbackStore, error) {
	switch cfg.Feedback.Backend {
	case config.BackendRedis:
		logger.Info("Initializing Redis feedback store...", "addr", cfg.Feedback.Redis.Addr)
		client, err := cache.NewRedisClient(cfg.Feedback.Redis.Addr, cfg.Feedback.Redis.Password, cfg.Feedback.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return &closingStore{
			FeedbackStore: cache.NewRedisFeedbackStore(client, cfg.Feedback.TTL),
			closer:        client,
		}, nil
	case config.BackendFirestore:
		logger.Info("Initializing Firestore feedback store...", "project_id", cfg.Feedback.Firestore.ProjectID)
		client, err := firestore.NewClient(ctx, cfg.Feedback.Firestore.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore client failed: %w", err)
		}
		return fsStore.NewFeedbackStore(client, cfg.Feedback.Firestore.Collection, cfg.Feedback.TTL), nil
	case config.BackendDisk:
		logger.Info("Initializing disk feedback store...", "path", cfg.Feedback.DiskPath)
		return diskv.NewFeedbackStore(cfg.Feedback.DiskPath, cfg.Feedback.TTL), nil
	case config.BackendNone, "":
		return dispatch.NopFeedbackStore{}, nil
	}
	return nil, fmt.Errorf("unknown feedback backend %q", cfg.Feedback.Backend)
}

// closingStore ties a store to the client it was built on.
type closingStore struct {
	dispatch.FeedbackStore
	closer io.Closer
}

func (s *closingStore) Close() error {
	return s.closer.Close()
}
