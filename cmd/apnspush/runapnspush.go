// Command apnspush sends one notification to a batch of devices and prints
// one result per device as JSON.
//
//	apnspush [-f batch.json] [-debug]
//	apnspush -listen
//
// The batch document is read from stdin when -f is not given. With -listen
// the command serves the push and feedback HTTP API on listen_addr (or PORT)
// instead.
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinywideclouds/go-apns-pusher/apnspusher"
	"github.com/tinywideclouds/go-apns-pusher/apnspusher/config"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	batchFile := flag.String("f", "", "JSON batch `file` (default stdin)")
	debug := flag.Bool("debug", false, "trace every APNS request")
	listen := flag.Bool("listen", false, "serve the HTTP API instead of sending one batch")
	flag.Parse()

	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	// stdout carries the results
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-apns-pusher")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}

	if *listen {
		if err := serve(ctx, cfg, logger); err != nil {
			logger.Error("Server failed", "err", err)
			os.Exit(1)
		}
		return
	}

	raw, err := readBatch(*batchFile)
	if err != nil {
		logger.Error("Failed to read batch", "err", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, raw, os.Stdout, logger); err != nil {
		logger.Error("Push failed", "err", err)
		os.Exit(1)
	}
}

func newPusher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*apnspusher.Pusher, error) {
	// --- Infrastructure Clients ---
	sender, err := apnspusher.NewSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := apnspusher.OpenFeedbackStore(ctx, cfg, logger)
	if err != nil {
		_ = sender.Close()
		return nil, err
	}
	return apnspusher.New(cfg, sender, store, logger)
}

func run(ctx context.Context, cfg *config.Config, raw []byte, out io.Writer, logger *slog.Logger) error {
	pusher, err := newPusher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pusher.Close()

	logger.Info("Sending batch...", "environment", cfg.Environment.String())
	report, err := pusher.RunWithTimeout(ctx, raw)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pusher, err := newPusher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	server := apnspusher.NewServer(cfg, pusher, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		_ = pusher.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func readBatch(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
