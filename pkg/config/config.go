package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Container     ContainerConfig     `mapstructure:"container"`
	Bulk          BulkConfig          `mapstructure:"bulk"`
	ForceMerge    ForceMergeConfig    `mapstructure:"force_merge"`
	Publication   PublicationConfig   `mapstructure:"publication"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Cleanup       CleanupConfig       `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Host            string `mapstructure:"host"`
	// ReadHeaderTimeout bounds reading request headers only. Bodies are
	// document streams of any length and are never timed out.
	ReadHeaderTimeout int `mapstructure:"read_header_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddCaller  bool   `mapstructure:"add_caller"`
	Stacktrace bool   `mapstructure:"stacktrace"`
}

type ElasticsearchConfig struct {
	Addresses      []string             `mapstructure:"addresses"`
	Username       string               `mapstructure:"username"`
	Password       string               `mapstructure:"password"`
	APIKey         string               `mapstructure:"api_key"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type ContainerConfig struct {
	// Root prefixes every alias and container name.
	Root string `mapstructure:"root"`
	// UpdatableFields restricts the fields partial updates may set. Empty
	// means any well-formed identifier.
	UpdatableFields []string `mapstructure:"updatable_fields"`
}

type BulkConfig struct {
	Workers       int           `mapstructure:"workers"`
	FlushBytes    int           `mapstructure:"flush_bytes"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type ForceMergeConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxNumberSegments int  `mapstructure:"max_number_segments"`
}

type PublicationConfig struct {
	Lock LockConfig `mapstructure:"lock"`
}

type LockConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	JaegerURL    string  `mapstructure:"jaeger_url"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type CleanupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	MinAge   time.Duration `mapstructure:"min_age"`
}

// Load reads <serviceName>.yaml from ./configs or /etc/mimir, then applies
// MIMIR_* environment overrides (MIMIR_ELASTICSEARCH_ADDRESSES, ...).
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/mimir")

	return load(v)
}

// LoadFile reads an explicit configuration file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("MIMIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env vars still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_header_timeout", 30)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 30)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.add_caller", true)
	v.SetDefault("logger.stacktrace", false)

	// Elasticsearch defaults
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.circuit_breaker.enabled", true)
	v.SetDefault("elasticsearch.circuit_breaker.max_requests", 3)
	v.SetDefault("elasticsearch.circuit_breaker.interval", 30*time.Second)
	v.SetDefault("elasticsearch.circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("elasticsearch.circuit_breaker.failure_ratio", 0.5)
	v.SetDefault("elasticsearch.circuit_breaker.min_requests", 5)

	// Container defaults
	v.SetDefault("container.root", "munin")
	v.SetDefault("container.updatable_fields", []string{})

	// Bulk defaults
	v.SetDefault("bulk.workers", 2)
	v.SetDefault("bulk.flush_bytes", 5*1024*1024)
	v.SetDefault("bulk.flush_interval", 30*time.Second)

	// Force merge defaults
	v.SetDefault("force_merge.enabled", false)
	v.SetDefault("force_merge.max_number_segments", 1)

	// Publication defaults
	v.SetDefault("publication.lock.enabled", false)
	v.SetDefault("publication.lock.ttl", 10*time.Minute)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "mimir.containers")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.jaeger_url", "http://localhost:14268/api/traces")
	v.SetDefault("telemetry.service_name", "mimir")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	// Cleanup defaults
	v.SetDefault("cleanup.enabled", false)
	v.SetDefault("cleanup.schedule", "0 0 3 * * *")
	v.SetDefault("cleanup.min_age", 24*time.Hour)
}

func (c *Config) Validate() error {
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch.addresses must not be empty")
	}
	if c.ForceMerge.Enabled && c.ForceMerge.MaxNumberSegments < 1 {
		return fmt.Errorf("force_merge.max_number_segments must be at least 1, got %d", c.ForceMerge.MaxNumberSegments)
	}
	if c.Bulk.Workers < 1 {
		return fmt.Errorf("bulk.workers must be at least 1, got %d", c.Bulk.Workers)
	}
	if c.Cleanup.Enabled && c.Cleanup.MinAge <= 0 {
		return fmt.Errorf("cleanup.min_age must be positive when cleanup is enabled")
	}
	return nil
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
