package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config структура конфига — собирается один раз в main и передаётся в юниты
type Config struct {
	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint       string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey      string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
		SecretKey      string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
		FragmentBucket string `yaml:"fragment_bucket" env:"FRAGMENT_BUCKET"`
		FrameBucket    string `yaml:"frame_bucket" env:"FRAME_BUCKET"`
	} `yaml:"minio"`

	Kafka struct {
		Brokers            []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		GroupID            string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
		RawTopic           string   `yaml:"raw_topic" env:"RAW_TOPIC"`
		NotificationTopic  string   `yaml:"notification_topic" env:"NOTIFICATION_TOPIC"`
		InvocationTopic    string   `yaml:"invocation_topic" env:"INVOCATION_TOPIC"`
		HeartbeatTopic     string   `yaml:"heartbeat_topic" env:"HEARTBEAT_TOPIC"`
		CommandTopicPrefix string   `yaml:"command_topic_prefix" env:"COMMAND_TOPIC_PREFIX"`
	} `yaml:"kafka"`

	Inference struct {
		Endpoint       string `yaml:"endpoint" env:"INFERENCE_ENDPOINT"`
		Model          string `yaml:"model" env:"INFERENCE_MODEL"`
		TimeoutSeconds int    `yaml:"timeout_seconds" env:"INFERENCE_TIMEOUT_SECONDS"`
	} `yaml:"inference"`

	Pipeline struct {
		StreamName          string   `yaml:"stream_name" env:"STREAM_NAME"`
		DefaultDeviceID     string   `yaml:"default_device_id" env:"DEFAULT_DEVICE_ID"`
		CriticalClasses     []string `yaml:"critical_classes" env:"CRITICAL_CLASSES" envSeparator:","`
		ConfidenceThreshold float64  `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
		DetectionTTLDays    int      `yaml:"detection_ttl_days" env:"DETECTION_TTL_DAYS"`
	} `yaml:"pipeline"`

	Dispatch struct {
		// Mode: push (по уведомлениям) или poll (опрос последнего фрагмента)
		Mode                string `yaml:"mode" env:"DISPATCH_MODE"`
		PollIntervalSeconds int    `yaml:"poll_interval_seconds" env:"POLL_INTERVAL_SECONDS"`
	} `yaml:"dispatch"`

	HTTP struct {
		Addr string `yaml:"addr" env:"HTTP_ADDR"`
	} `yaml:"http"`

	Metrics struct {
		Addr string `yaml:"addr" env:"METRICS_ADDR"`
	} `yaml:"metrics"`

	Watchdog struct {
		StaleSeconds int `yaml:"stale_seconds" env:"WATCHDOG_STALE_SECONDS"`
	} `yaml:"watchdog"`
}

func LoadConfig(filename string) (*Config, error) {
	cfg := &Config{}

	if filename == "" {
		filename = "local.yaml"
	}
	path := "internal/config/" + filename

	// Читаем YAML
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Парсим YAML в структуру
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Парсим переменные окружения с приоритетом
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.DefaultDeviceID == "" {
		c.Pipeline.DefaultDeviceID = "default-device"
	}
	if len(c.Pipeline.CriticalClasses) == 0 {
		c.Pipeline.CriticalClasses = []string{"human", "person", "pedestrian", "animal", "dog", "cat"}
	}
	if c.Pipeline.ConfidenceThreshold == 0 {
		c.Pipeline.ConfidenceThreshold = 0.7
	}
	if c.Pipeline.DetectionTTLDays == 0 {
		c.Pipeline.DetectionTTLDays = 7
	}
	if c.Dispatch.Mode == "" {
		c.Dispatch.Mode = "push"
	}
	if c.Dispatch.PollIntervalSeconds == 0 {
		c.Dispatch.PollIntervalSeconds = 10
	}
	if c.Inference.TimeoutSeconds == 0 {
		c.Inference.TimeoutSeconds = 60
	}
	if c.Watchdog.StaleSeconds == 0 {
		c.Watchdog.StaleSeconds = 30
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8002"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9102"
	}
}

func (c *Config) validate() error {
	if c.Pipeline.StreamName == "" {
		return fmt.Errorf("config: pipeline.stream_name is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers is required")
	}
	if c.Dispatch.Mode != "push" && c.Dispatch.Mode != "poll" {
		return fmt.Errorf("config: unknown dispatch mode %q", c.Dispatch.Mode)
	}
	return nil
}

// DetectionTTL срок хранения детекций
func (c *Config) DetectionTTL() time.Duration {
	return time.Duration(c.Pipeline.DetectionTTLDays) * 24 * time.Hour
}

// PollInterval период опроса в режиме poll
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Dispatch.PollIntervalSeconds) * time.Second
}

// StaleAfter интервал, после которого устройство считается offline
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Watchdog.StaleSeconds) * time.Second
}
