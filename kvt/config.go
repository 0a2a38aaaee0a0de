package kvt

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ltzhang/kvtstore/kvt/ordered"
)

// Concurrency-control scheme names accepted in Config.Scheme.
const (
	// SchemeNoCC applies no concurrency control. Operations act
	// directly on table data.
	SchemeNoCC = "nocc"
	// SchemeSerialized allows one live transaction at a time.
	SchemeSerialized = "serialized"
	// SchemeTwoPhase uses strict two-phase locking with non-blocking
	// lock acquisition.
	SchemeTwoPhase = "2pl"
	// SchemeOptimistic uses optimistic concurrency control with
	// commit-time version validation.
	SchemeOptimistic = "occ"
)

// Config configures an Engine.
type Config struct {
	// Scheme selects the concurrency-control scheme. Defaults to
	// SchemeTwoPhase.
	Scheme string `yaml:"scheme"`
	// Driver selects the ordered-map driver backing table data by
	// name. Defaults to the treemap driver.
	Driver string `yaml:"driver"`
	// MaxScanLimit caps the number of items any scan may return.
	// Zero means no cap.
	MaxScanLimit int `yaml:"max_scan_limit"`
	// Logger receives engine logs. Nil means no logging.
	Logger *zap.Logger `yaml:"-"`
	// Registerer receives the engine's metrics. Nil disables
	// metric registration.
	Registerer prometheus.Registerer `yaml:"-"`
}

func (config Config) withDefaults() Config {
	if config.Scheme == "" {
		config.Scheme = SchemeTwoPhase
	}

	if config.Driver == "" {
		config.Driver = ordered.DriverTreemap
	}

	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return config
}

// Validate returns an error describing the first invalid field, if any.
func (config Config) Validate() error {
	switch config.Scheme {
	case "", SchemeNoCC, SchemeSerialized, SchemeTwoPhase, SchemeOptimistic:
	default:
		return fmt.Errorf("unknown concurrency scheme %q", config.Scheme)
	}

	if config.Driver != "" && ordered.Lookup(config.Driver) == nil {
		return fmt.Errorf("unknown ordered-map driver %q", config.Driver)
	}

	if config.MaxScanLimit < 0 {
		return fmt.Errorf("max_scan_limit must not be negative")
	}

	return nil
}

// LoadConfig reads a Config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return Config{}, fmt.Errorf("could not read config file: %w", err)
	}

	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("could not parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}
