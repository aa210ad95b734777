package mapper

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultWorkers       = 4
	defaultAuditCapacity = 256
	defaultRetryInterval = 50 * time.Millisecond
	maxRetryAttempts     = 16
)

var ErrInvalidConfig = errors.New("mapper: invalid config")

// Config is the manager configuration. Zero limits mean unlimited.
type Config struct {
	// MaxLiveMappings caps the number of simultaneously mapped files.
	MaxLiveMappings int `yaml:"max_live_mappings"`
	// MaxMappedBytes caps the sum of the sizes of all live mappings.
	MaxMappedBytes int64 `yaml:"max_mapped_bytes"`
	// RetryAttempts is the number of extra open attempts after a failure.
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	// Workers bounds the pool used by OpenAll.
	Workers       int `yaml:"workers"`
	AuditCapacity int `yaml:"audit_capacity"`
	// MaxOpenDescriptors is the process descriptor budget reported by the
	// health handler.
	MaxOpenDescriptors int32 `yaml:"max_open_descriptors"`
}

// DefaultConfig returns a configuration without limits or retries.
func DefaultConfig() *Config {
	return &Config{
		RetryInterval: defaultRetryInterval,
		Workers:       defaultWorkers,
		AuditCapacity: defaultAuditCapacity,
	}
}

// VerifyConfig reports the first invalid field of config.
func VerifyConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if config.MaxLiveMappings < 0 {
		return fmt.Errorf("%w: max_live_mappings %d is negative", ErrInvalidConfig, config.MaxLiveMappings)
	}
	if config.MaxMappedBytes < 0 {
		return fmt.Errorf("%w: max_mapped_bytes %d is negative", ErrInvalidConfig, config.MaxMappedBytes)
	}
	if config.RetryAttempts < 0 || config.RetryAttempts > maxRetryAttempts {
		return fmt.Errorf("%w: retry_attempts must be within [0, %d]", ErrInvalidConfig, maxRetryAttempts)
	}
	if config.RetryAttempts > 0 && config.RetryInterval <= 0 {
		return fmt.Errorf("%w: retry_interval must be positive when retrying", ErrInvalidConfig)
	}
	if config.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if config.AuditCapacity < 0 {
		return fmt.Errorf("%w: audit_capacity %d is negative", ErrInvalidConfig, config.AuditCapacity)
	}
	if config.MaxOpenDescriptors < 0 {
		return fmt.Errorf("%w: max_open_descriptors %d is negative", ErrInvalidConfig, config.MaxOpenDescriptors)
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig and verifies it.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}
