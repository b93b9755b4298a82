package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Storage      StorageConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver        string `default:"postgres" usage:"Storage backend: postgres or mongo"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (STORE_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MongoURI      string `usage:"MongoDB connection URI (STORE_STORAGE_MONGO_URI or MONGODB_URI)" flag:"mongo-uri"`
	MongoDatabase string `default:"storefront" usage:"MongoDB database name" flag:"mongo-database"`
}

// KafkaConfig enables OrderPlaced events when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka seed brokers; empty disables order events"`
	Topic   string   `default:"orders.placed" usage:"Topic for OrderPlaced events"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads a .env file when present, then configuration from
// environment variables and YAML config files, and applies platform defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, Atlas, etc.) with standard names to the STORE_-prefixed settings.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.MongoURI == "" {
		c.Storage.MongoURI = os.Getenv("MONGODB_URI")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set STORE_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("mongo URI is required: set STORE_STORAGE_MONGO_URI or MONGODB_URI")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
