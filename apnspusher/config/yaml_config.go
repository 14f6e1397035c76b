package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-apns-pusher/pkg/apns"
)

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type YamlFirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
}

type YamlFeedbackConfig struct {
	Backend   string              `yaml:"backend"`
	Redis     YamlRedisConfig     `yaml:"redis"`
	Firestore YamlFirestoreConfig `yaml:"firestore"`
	DiskPath  string              `yaml:"disk_path"`
	TTL       string              `yaml:"ttl"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	Environment      string             `yaml:"environment"`
	CertificatePath  string             `yaml:"certificate_path"`
	Passphrase       string             `yaml:"passphrase"`
	Debug            bool               `yaml:"debug"`
	SkipKnownInvalid bool               `yaml:"skip_known_invalid"`
	ListenAddr       string             `yaml:"listen_addr"`
	Feedback         YamlFeedbackConfig `yaml:"feedback"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	env := apns.Production
	if baseCfg.Environment != "" {
		parsed, err := apns.ParseEnvironment(baseCfg.Environment)
		if err != nil {
			return nil, err
		}
		env = parsed
	}

	var ttl time.Duration
	if baseCfg.Feedback.TTL != "" {
		parsed, err := time.ParseDuration(baseCfg.Feedback.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid feedback ttl %q: %w", baseCfg.Feedback.TTL, err)
		}
		ttl = parsed
	}

	cfg := &Config{
		Environment:      env,
		CertificatePath:  baseCfg.CertificatePath,
		Passphrase:       baseCfg.Passphrase,
		Debug:            baseCfg.Debug,
		SkipKnownInvalid: baseCfg.SkipKnownInvalid,
		ListenAddr:       baseCfg.ListenAddr,
		Feedback: FeedbackConfig{
			Backend: baseCfg.Feedback.Backend,
			Redis: RedisConfig{
				Addr:     baseCfg.Feedback.Redis.Addr,
				Password: baseCfg.Feedback.Redis.Password,
				DB:       baseCfg.Feedback.Redis.DB,
			},
			Firestore: FirestoreConfig{
				ProjectID:  baseCfg.Feedback.Firestore.ProjectID,
				Collection: baseCfg.Feedback.Firestore.Collection,
			},
			DiskPath: baseCfg.Feedback.DiskPath,
			TTL:      ttl,
		},
	}

	logger.Debug("YAML config mapping complete",
		"environment", cfg.Environment.String(),
		"certificate_path", cfg.CertificatePath,
		"feedback_backend", cfg.Feedback.Backend,
	)

	return cfg, nil
}
