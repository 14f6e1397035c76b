package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/tinywideclouds/go-apns-pusher/pkg/apns"
)

// Feedback backends.
const (
	BackendNone  = "none"
	BackendRedis = "redis"
	BackendDisk  = "disk"
	// BackendFirestore stores feedback in Google Cloud Firestore.
	BackendFirestore = "firestore"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type FirestoreConfig struct {
	ProjectID  string
	Collection string
}

type FeedbackConfig struct {
	Backend   string
	Redis     RedisConfig
	Firestore FirestoreConfig
	DiskPath  string
	TTL       time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	Environment      apns.Environment
	CertificatePath  string
	Passphrase       string
	Debug            bool
	SkipKnownInvalid bool
	// ListenAddr is only used when serving the HTTP API.
	ListenAddr string

	Feedback FeedbackConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("APNS_ENVIRONMENT"); val != "" {
		env, err := apns.ParseEnvironment(val)
		if err != nil {
			return nil, fmt.Errorf("APNS_ENVIRONMENT: %w", err)
		}
		logger.Debug("Overriding config value", "key", "APNS_ENVIRONMENT", "source", "env")
		cfg.Environment = env
	}
	if val := os.Getenv("APNS_CERT_PATH"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_CERT_PATH", "source", "env")
		cfg.CertificatePath = val
	}
	if val := os.Getenv("APNS_CERT_PASSPHRASE"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_CERT_PASSPHRASE", "source", "env")
		cfg.Passphrase = val
	}
	if val := os.Getenv("APNS_DEBUG"); val != "" {
		if debug, err := strconv.ParseBool(val); err == nil {
			logger.Debug("Overriding config value", "key", "APNS_DEBUG", "source", "env")
			cfg.Debug = debug
		}
	}
	if val := os.Getenv("APNS_SKIP_KNOWN_INVALID"); val != "" {
		if skip, err := strconv.ParseBool(val); err == nil {
			logger.Debug("Overriding config value", "key", "APNS_SKIP_KNOWN_INVALID", "source", "env")
			cfg.SkipKnownInvalid = skip
		}
	}

	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}

	// Feedback Overrides
	if val := os.Getenv("FEEDBACK_BACKEND"); val != "" {
		logger.Debug("Overriding config value", "key", "FEEDBACK_BACKEND", "source", "env")
		cfg.Feedback.Backend = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		logger.Debug("Overriding config value", "key", "REDIS_ADDR", "source", "env")
		cfg.Feedback.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Feedback.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Feedback.Redis.DB = db
		}
	}
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.Feedback.Firestore.ProjectID = val
	}
	if val := os.Getenv("FIRESTORE_COLLECTION"); val != "" {
		logger.Debug("Overriding config value", "key", "FIRESTORE_COLLECTION", "source", "env")
		cfg.Feedback.Firestore.Collection = val
	}
	if val := os.Getenv("FEEDBACK_DISK_PATH"); val != "" {
		logger.Debug("Overriding config value", "key", "FEEDBACK_DISK_PATH", "source", "env")
		cfg.Feedback.DiskPath = val
	}
	if val := os.Getenv("FEEDBACK_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			logger.Debug("Overriding config value", "key", "FEEDBACK_TTL", "source", "env")
			cfg.Feedback.TTL = ttl
		}
	}

	// 2. Final Validation
	if cfg.CertificatePath == "" {
		return nil, fmt.Errorf("certificate_path is required (set via YAML or APNS_CERT_PATH env var)")
	}
	if cfg.Environment != apns.Production && cfg.Environment != apns.Sandbox {
		return nil, fmt.Errorf("unknown apns environment %d", int(cfg.Environment))
	}
	if cfg.Feedback.Backend == "" {
		cfg.Feedback.Backend = BackendNone
	}
	switch cfg.Feedback.Backend {
	case BackendNone:
	case BackendRedis:
		if cfg.Feedback.Redis.Addr == "" {
			return nil, fmt.Errorf("feedback.redis.addr is required for the redis backend (or REDIS_ADDR env var)")
		}
	case BackendDisk:
		if cfg.Feedback.DiskPath == "" {
			return nil, fmt.Errorf("feedback.disk_path is required for the disk backend (or FEEDBACK_DISK_PATH env var)")
		}
	case BackendFirestore:
		if cfg.Feedback.Firestore.ProjectID == "" {
			return nil, fmt.Errorf("feedback.firestore.project_id is required for the firestore backend (or PROJECT_ID env var)")
		}
	default:
		return nil, fmt.Errorf("unknown feedback backend %q", cfg.Feedback.Backend)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.SkipKnownInvalid && cfg.Feedback.Backend == BackendNone {
		logger.Warn("skip_known_invalid has no effect without a feedback backend")
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
