// Package config loads the server configuration: a TOML file, an optional
// .env file and environment overrides, in that order. Command-line flags
// are applied by the caller on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	EnvBackendURL = "SMART_COMMENTS_API_URL"
	EnvHTTPAddr   = "SMART_COMMENTS_HTTP_ADDR"
	EnvLogLevel   = "SMART_COMMENTS_LOG_LEVEL"
	EnvKafkaAddr  = "SMART_COMMENTS_KAFKA_ADDR"
)

type Config struct {
	ServiceName string `toml:"serviceName" validate:"required"`
	HTTPAddr    string `toml:"httpAddr" validate:"required,contains=:"`
	LogLevel    string `toml:"logLevel" validate:"oneof=debug info warn error"`

	BackendURL string `toml:"backendURL" validate:"required,url"`
	TimeoutSec int    `toml:"timeoutSec" validate:"gte=1"`

	// Dev starts the in-memory backend on DevAddr and points BackendURL at it.
	Dev     bool   `toml:"dev"`
	DevAddr string `toml:"devAddr" validate:"required_if=Dev true"`

	KafkaAddr  string `toml:"kafkaAddr"`
	KafkaTopic string `toml:"kafkaTopic" validate:"required_with=KafkaAddr"`
	KafkaBatch int    `toml:"kafkaBatch" validate:"gte=0"`
}

func Default() Config {
	return Config{
		ServiceName: "smartcomments-frontend",
		HTTPAddr:    ":8080",
		LogLevel:    "info",
		BackendURL:  "http://localhost:8000/api",
		TimeoutSec:  10,
		DevAddr:     "127.0.0.1:8000",
	}
}

// Load starts from Default, decodes the TOML file at path when path is not
// empty, then loads envFiles and applies environment overrides. Missing
// env files are skipped.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding config file %s: %w", path, err)
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debugf("[config.Load] env file %s not found, skipping", f)
				continue
			}
			return Config{}, fmt.Errorf("loading env file %s: %w", f, err)
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvKafkaAddr); v != "" {
		c.KafkaAddr = v
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// DevBackendURL is the base URL of the in-memory backend listening on DevAddr.
func (c Config) DevBackendURL() string {
	host := c.DevAddr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + "/api"
}

// KafkaEnabled reports whether request logs are shipped to Kafka.
func (c Config) KafkaEnabled() bool {
	return c.KafkaAddr != "" && c.KafkaTopic != ""
}
