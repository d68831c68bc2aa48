package eventwire

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// Config errors
var (
	ErrConfigInvalidWorkerCount = errors.New("config: worker count must be positive")
	ErrConfigInvalidQueueSize   = errors.New("config: queue size must be positive")
	ErrConfigUnsupportedFormat  = errors.New("config: unsupported file format")
)

// Config holds the tunables of a Bus instance. A Config is read once at
// construction; it is not reloaded.
type Config struct {
	// WorkerCount is the number of goroutines in the default worker pool.
	WorkerCount int `yaml:"workerCount" toml:"workerCount" env:"WORKER_COUNT"`

	// QueueSize is the task buffer of the default worker pool.
	QueueSize int `yaml:"queueSize" toml:"queueSize" env:"QUEUE_SIZE"`

	// RawCacheSize bounds the raw-type match cache.
	RawCacheSize int `yaml:"rawCacheSize" toml:"rawCacheSize" env:"RAW_CACHE_SIZE"`

	// PresenceCacheSize bounds the lifecycle-observer-presence cache.
	PresenceCacheSize int `yaml:"presenceCacheSize" toml:"presenceCacheSize" env:"PRESENCE_CACHE_SIZE"`

	// ShutdownTimeout bounds Close when draining the default pool.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" toml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() *Config {
	return &Config{
		WorkerCount:       4,
		QueueSize:         64,
		RawCacheSize:      defaultRawCacheSize,
		PresenceCacheSize: defaultPresenceCacheSize,
		ShutdownTimeout:   30 * time.Second,
	}
}

// LoadConfig reads a configuration file, selecting the decoder by extension
// (.yaml/.yml or .toml), over the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrConfigUnsupportedFormat, path)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from environment variables named by the field's
// env tag with the given prefix, e.g. prefix "EVENTWIRE_" reads
// EVENTWIRE_WORKER_COUNT. Unset variables leave the field untouched.
func (c *Config) ApplyEnv(prefix string) error {
	value := reflect.ValueOf(c).Elem()
	structType := value.Type()
	for i := 0; i < structType.NumField(); i++ {
		tag := structType.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}
		raw, ok := os.LookupEnv(prefix + tag)
		if !ok {
			continue
		}
		field := value.Field(i)
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			parsed, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("config: parsing %s%s: %w", prefix, tag, err)
			}
			field.Set(reflect.ValueOf(parsed))
			continue
		}
		converted, err := cast.FromType(raw, field.Type())
		if err != nil {
			return fmt.Errorf("config: converting %s%s: %w", prefix, tag, err)
		}
		field.Set(reflect.ValueOf(converted).Convert(field.Type()))
	}
	return c.Validate()
}

// Validate rejects unusable values.
func (c *Config) Validate() error {
	if c.WorkerCount <= 0 {
		return ErrConfigInvalidWorkerCount
	}
	if c.QueueSize <= 0 {
		return ErrConfigInvalidQueueSize
	}
	return nil
}
