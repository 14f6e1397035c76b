package apnspusher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"

	"github.com/tinywideclouds/go-apns-pusher/apnspusher/config"
)

// Server exposes a Pusher over HTTP.
type Server struct {
	*microservice.BaseServer
	pusher *Pusher
	logger *slog.Logger
}

func NewServer(cfg *config.Config, pusher *Pusher, logger *slog.Logger) *Server {
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)
	pusher.RegisterRoutes(baseServer.Mux())
	return &Server{
		BaseServer: baseServer,
		pusher:     pusher,
		logger:     logger,
	}
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.SetReady(true)
	s.logger.Info("Service is now ready.")
	if err := s.BaseServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down service components...")
	var finalErr error
	if err := s.BaseServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	if err := s.pusher.Close(); err != nil {
		finalErr = err
	}
	s.logger.Info("Service shutdown complete.")
	return finalErr
}
