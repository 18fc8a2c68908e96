package config

import (
	"github.com/mimir-go/pkg/events"
	"github.com/mimir-go/pkg/lock"
	"github.com/mimir-go/pkg/logger"
	"github.com/mimir-go/pkg/resilience"
	"github.com/mimir-go/pkg/telemetry"
)

// ToLoggerConfig converts LoggerConfig to logger.Config
func (c LoggerConfig) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		AddCaller:  c.AddCaller,
		Stacktrace: c.Stacktrace,
	}
}

// ToCircuitBreakerConfig converts CircuitBreakerConfig to resilience.CircuitBreakerConfig
func (c CircuitBreakerConfig) ToCircuitBreakerConfig(name string) resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		Name:         name,
		Enabled:      c.Enabled,
		MaxRequests:  c.MaxRequests,
		Interval:     c.Interval,
		Timeout:      c.Timeout,
		FailureRatio: c.FailureRatio,
		MinRequests:  c.MinRequests,
	}
}

// ToKafkaConfig converts KafkaConfig to events.KafkaConfig
func (c KafkaConfig) ToKafkaConfig() events.KafkaConfig {
	return events.KafkaConfig{
		Brokers: c.Brokers,
		Topic:   c.Topic,
	}
}

// ToLockConfig converts LockConfig to lock.Config
func (c LockConfig) ToLockConfig() lock.Config {
	return lock.Config{
		Prefix: "mimir:publish:",
		TTL:    c.TTL,
	}
}

// ToTelemetryConfig converts TelemetryConfig to telemetry.Config
func (c TelemetryConfig) ToTelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:      c.Enabled,
		JaegerURL:    c.JaegerURL,
		ServiceName:  c.ServiceName,
		SamplingRate: c.SamplingRate,
	}
}
