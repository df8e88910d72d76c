// Package config handles configuration loading for the simulator service.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows connection strings
// and passwords to be injected at runtime.
//
// # Configuration Sections
//
//   - server: HTTP server settings (port, TLS, base path, body limit)
//   - iso20022: validation settings (schemas, profile, supported messages)
//   - performance: concurrency limit and per-message timeout
//   - storage: processing record persistence (memory or MongoDB)
//   - duplicates: duplicate message id detection (memory or Redis)
//   - events: outcome publishing (Kafka or NATS)
//   - observability: metrics endpoint and logging
//   - oauth2: optional bearer token authentication of the API
//
// # Example Configuration
//
//	server:
//	  port: 8080
//	  basePath: "/"
//
//	iso20022:
//	  schemaPath: /etc/iso20022/schemas
//	  validation:
//	    profile: standard
//
//	storage:
//	  type: mongodb
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: iso20022
//
//	duplicates:
//	  enabled: true
//	  backend: redis
//	  window: 24h
//	  redis:
//	    address: ${REDIS_ADDR}
//
// See [Load] for loading configuration from a file and [Default] for the
// configuration used when no file is given.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
	"github.com/sirosfoundation/go-iso20022/pkg/rules"
)

// Config is the root configuration structure
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	ISO20022      ISO20022Config      `yaml:"iso20022"`
	Performance   PerformanceConfig   `yaml:"performance"`
	Storage       StorageConfig       `yaml:"storage"`
	Duplicates    DuplicatesConfig    `yaml:"duplicates"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
	OAuth2        OAuth2Config        `yaml:"oauth2"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         int           `yaml:"port"`
	BasePath     string        `yaml:"basePath"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	TLS          struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	} `yaml:"tls"`
}

// ISO20022Config holds validation settings
type ISO20022Config struct {
	// SchemaPath is a directory of shape schemas consulted before the
	// embedded ones. Empty uses the embedded schemas only.
	SchemaPath     string `yaml:"schemaPath"`
	ValidateSchema *bool  `yaml:"validateSchema"`
	// SupportedMessages lists family prefixes such as "pacs.008". Empty
	// supports every family.
	SupportedMessages []string `yaml:"supportedMessages"`
	Validation        struct {
		Profile string `yaml:"profile"`
	} `yaml:"validation"`
	MaxDocumentBytes int `yaml:"maxDocumentBytes"`
}

// SchemaValidationEnabled reports whether structural validation runs.
func (c ISO20022Config) SchemaValidationEnabled() bool {
	return c.ValidateSchema == nil || *c.ValidateSchema
}

// PerformanceConfig holds throughput limits
type PerformanceConfig struct {
	MaxConcurrentMessages int           `yaml:"maxConcurrentMessages"`
	ProcessingTimeout     time.Duration `yaml:"processingTimeout"`
}

// StorageConfig holds processing record persistence settings
type StorageConfig struct {
	// Type is "memory" or "mongodb"
	Type    string        `yaml:"type"`
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	GridFS     struct {
		BucketName     string `yaml:"bucketName"`
		ChunkSizeBytes int32  `yaml:"chunkSizeBytes"`
	} `yaml:"gridfs"`
}

// DuplicatesConfig holds duplicate message id detection settings
type DuplicatesConfig struct {
	Enabled bool `yaml:"enabled"`
	// Backend is "memory" or "redis"
	Backend string        `yaml:"backend"`
	Window  time.Duration `yaml:"window"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// EventsConfig holds outcome publishing settings
type EventsConfig struct {
	// Backend is "none", "kafka" or "nats"
	Backend string `yaml:"backend"`
	Kafka   struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
}

// ObservabilityConfig holds metrics and logging settings
type ObservabilityConfig struct {
	Metrics struct {
		Enabled *bool  `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// OAuth2Config holds OAuth2/OIDC settings. Authentication is enabled when
// an issuer is set.
type OAuth2Config struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSUrl  string `yaml:"jwksUrl"`
	// Scope, when set, must appear in the token's scope claim.
	Scope string `yaml:"scope"`
}

// MetricsEnabled reports whether the metrics endpoint is served.
func (c ObservabilityConfig) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML, expanding environment variables
// and applying defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 10 << 20
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.ISO20022.Validation.Profile == "" {
		c.ISO20022.Validation.Profile = rules.ProfileStandard.String()
	}
	if c.ISO20022.MaxDocumentBytes == 0 {
		c.ISO20022.MaxDocumentBytes = int(c.Server.MaxBodyBytes)
	}
	if c.Performance.MaxConcurrentMessages == 0 {
		c.Performance.MaxConcurrentMessages = 1000
	}
	if c.Performance.ProcessingTimeout == 0 {
		c.Performance.ProcessingTimeout = 30 * time.Second
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "iso20022"
	}
	if c.Storage.MongoDB.Collection == "" {
		c.Storage.MongoDB.Collection = "processing_records"
	}
	if c.Storage.MongoDB.GridFS.BucketName == "" {
		c.Storage.MongoDB.GridFS.BucketName = "documents"
	}
	if c.Storage.MongoDB.GridFS.ChunkSizeBytes == 0 {
		c.Storage.MongoDB.GridFS.ChunkSizeBytes = 261120 // 255KB
	}
	if c.Duplicates.Backend == "" {
		c.Duplicates.Backend = "memory"
	}
	if c.Duplicates.Window == 0 {
		c.Duplicates.Window = 24 * time.Hour
	}
	if c.Events.Backend == "" {
		c.Events.Backend = "none"
	}
	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = "iso20022.outcomes"
	}
	if c.Events.NATS.Subject == "" {
		c.Events.NATS.Subject = "iso20022.outcomes"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.basePath must start with '/', got '%s'", c.Server.BasePath)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.maxBodyBytes must not be negative")
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls.certFile and server.tls.keyFile are required when TLS is enabled")
	}

	if _, err := rules.ParseProfile(c.ISO20022.Validation.Profile); err != nil {
		return fmt.Errorf("iso20022.validation.profile: %w", err)
	}
	for _, m := range c.ISO20022.SupportedMessages {
		if !message.Classify(m).Known() {
			return fmt.Errorf("iso20022.supportedMessages: unknown message family '%s'", m)
		}
	}

	if c.Performance.MaxConcurrentMessages < 0 {
		return fmt.Errorf("performance.maxConcurrentMessages must not be negative")
	}
	if c.Performance.ProcessingTimeout < 0 {
		return fmt.Errorf("performance.processingTimeout must not be negative")
	}

	switch c.Storage.Type {
	case "memory":
	case "mongodb":
		if c.Storage.MongoDB.URI == "" {
			return fmt.Errorf("storage.mongodb.uri is required when type is 'mongodb'")
		}
	default:
		return fmt.Errorf("storage.type must be 'memory' or 'mongodb', got '%s'", c.Storage.Type)
	}

	if c.Duplicates.Enabled {
		switch c.Duplicates.Backend {
		case "memory":
		case "redis":
			if c.Duplicates.Redis.Address == "" {
				return fmt.Errorf("duplicates.redis.address is required when backend is 'redis'")
			}
		default:
			return fmt.Errorf("duplicates.backend must be 'memory' or 'redis', got '%s'", c.Duplicates.Backend)
		}
	}
	if c.Duplicates.Window < 0 {
		return fmt.Errorf("duplicates.window must not be negative")
	}

	switch c.Events.Backend {
	case "none":
	case "kafka":
		if len(c.Events.Kafka.Brokers) == 0 {
			return fmt.Errorf("events.kafka.brokers is required when backend is 'kafka'")
		}
	case "nats":
		if c.Events.NATS.URL == "" {
			return fmt.Errorf("events.nats.url is required when backend is 'nats'")
		}
	default:
		return fmt.Errorf("events.backend must be 'none', 'kafka' or 'nats', got '%s'", c.Events.Backend)
	}

	switch c.Observability.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("observability.logging.format must be 'text' or 'json', got '%s'", c.Observability.Logging.Format)
	}

	if c.OAuth2.Issuer != "" && c.OAuth2.JWKSUrl == "" {
		return fmt.Errorf("oauth2.jwksUrl is required when oauth2.issuer is set")
	}

	return nil
}
