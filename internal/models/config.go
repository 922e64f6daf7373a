package models

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr     string `yaml:"server_addr"`
	BaseURL        string `yaml:"base_url"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	DatabaseURL    string `yaml:"database_url"`
	LogLevel       string `yaml:"log_level"`

	UploadDir    string `yaml:"upload_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	UserFilesDir string `yaml:"user_files_dir"`

	FileStore FileStoreConfig `yaml:"file_store"`
	Session   SessionConfig   `yaml:"session"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Kafka     KafkaConfig     `yaml:"kafka"`

	BackgroundRemoverURL string   `yaml:"background_remover_url"`
	FontPaths            []string `yaml:"font_paths"`
}

type FileStoreConfig struct {
	Backend   string `yaml:"backend"` // local, s3
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type SessionConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
	Secure bool          `yaml:"secure"`
}

type StripeConfig struct {
	SecretKey      string `yaml:"secret_key"`
	PublishableKey string `yaml:"publishable_key"`
	PriceID        string `yaml:"price_id"`
	WebhookSecret  string `yaml:"webhook_secret"`
}

type KafkaConfig struct {
	Broker  string `yaml:"broker"`
	Topic   string `yaml:"topic"`
	GroupID string `yaml:"group_id"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the
// environment and fills defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case !os.IsNotExist(err):
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overlay := map[string]*string{
		"DATABASE_URL":           &c.DatabaseURL,
		"JWT_SECRET":             &c.Session.Secret,
		"STRIPE_SECRET_KEY":      &c.Stripe.SecretKey,
		"STRIPE_PUBLISHABLE_KEY": &c.Stripe.PublishableKey,
		"STRIPE_PRICE_ID":        &c.Stripe.PriceID,
		"STRIPE_WEBHOOK_SECRET":  &c.Stripe.WebhookSecret,
		"KAFKA_BROKER":           &c.Kafka.Broker,
		"S3_ACCESS_KEY":          &c.FileStore.AccessKey,
		"S3_SECRET_KEY":          &c.FileStore.SecretKey,
	}
	for env, dst := range overlay {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 16 << 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.UploadDir == "" {
		c.UploadDir = "static/uploads_studio"
	}
	if c.ProcessedDir == "" {
		c.ProcessedDir = "static/processed_studio"
	}
	if c.UserFilesDir == "" {
		c.UserFilesDir = "static/user_files"
	}
	if c.FileStore.Backend == "" {
		c.FileStore.Backend = "local"
	}
	if c.FileStore.Region == "" {
		c.FileStore.Region = "us-east-1"
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "mygizmo-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "mygizmo-janitor"
	}
}
