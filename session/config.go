package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/transport"
)

// Environment variables consulted by ApplyEnvOverrides.
const (
	EnvEndpoint    = "QI_ENDPOINT"
	EnvCallTimeout = "QI_CALL_TIMEOUT"
	EnvSearchPaths = "QI_SEARCH_PATHS"
)

// RateLimit throttles calls per service. Zero RPS disables throttling.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Config is everything a session needs to reach the middleware. It is
// passed once to Connect and never read from global state.
type Config struct {
	// Endpoint is a URL ("tcp://nao.local:9559") or a multiaddr
	// ("/ip4/10.0.0.2/tcp/9559").
	Endpoint string `yaml:"endpoint"`
	// SearchPaths lists directories the native binding loads modules from.
	SearchPaths []string `yaml:"searchPaths"`
	// NativeModule names the native library backing the connection.
	NativeModule string `yaml:"nativeModule"`
	// CallTimeout bounds every call. Zero means calls wait indefinitely.
	CallTimeout time.Duration `yaml:"callTimeout"`
	// RateLimit throttles calls per service.
	RateLimit RateLimit `yaml:"rateLimit"`
	// DeliveryBacklog caps the events a signal channel queues for its
	// handlers. Zero means no cap.
	DeliveryBacklog int `yaml:"deliveryBacklog"`
}

// DefaultConfig targets a robot on the local host.
var DefaultConfig = Config{
	Endpoint:     "tcp://127.0.0.1:9559",
	NativeModule: "qi",
}

// LoadConfig reads a YAML file, merges it over DefaultConfig and applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for in-memory YAML.
func ParseConfig(data []byte) (Config, error) {
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg := DefaultConfig
	Merge(&cfg, parsed)
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Merge copies the non-zero fields of src into dst.
func Merge(dst *Config, src Config) {
	if src.Endpoint != "" {
		dst.Endpoint = src.Endpoint
	}
	if src.SearchPaths != nil {
		dst.SearchPaths = src.SearchPaths
	}
	if src.NativeModule != "" {
		dst.NativeModule = src.NativeModule
	}
	if src.CallTimeout != 0 {
		dst.CallTimeout = src.CallTimeout
	}
	if src.RateLimit.RPS != 0 {
		dst.RateLimit.RPS = src.RateLimit.RPS
	}
	if src.RateLimit.Burst != 0 {
		dst.RateLimit.Burst = src.RateLimit.Burst
	}
	if src.DeliveryBacklog != 0 {
		dst.DeliveryBacklog = src.DeliveryBacklog
	}
}

// ApplyEnvOverrides applies QI_ENDPOINT, QI_CALL_TIMEOUT and QI_SEARCH_PATHS.
func ApplyEnvOverrides(cfg *Config) error {
	if ep := strings.TrimSpace(os.Getenv(EnvEndpoint)); ep != "" {
		cfg.Endpoint = ep
	}
	if raw := strings.TrimSpace(os.Getenv(EnvCallTimeout)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCallTimeout, err)
		}
		cfg.CallTimeout = d
	}
	if raw := strings.TrimSpace(os.Getenv(EnvSearchPaths)); raw != "" {
		cfg.SearchPaths = filepath.SplitList(raw)
	}
	return nil
}

// Validate checks the endpoint and numeric limits.
func (c Config) Validate() error {
	if _, err := transport.ParseEndpoint(c.Endpoint); err != nil {
		return err
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("%w: negative call timeout %s", core.ErrConnection, c.CallTimeout)
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("%w: negative rate limit", core.ErrConnection)
	}
	if c.DeliveryBacklog < 0 {
		return fmt.Errorf("%w: negative delivery backlog", core.ErrConnection)
	}
	return nil
}

// Target converts the configuration to what a dialer consumes.
func (c Config) Target() (transport.Target, error) {
	ep, err := transport.ParseEndpoint(c.Endpoint)
	if err != nil {
		return transport.Target{}, err
	}
	return transport.Target{
		Endpoint:     ep,
		SearchPaths:  append([]string(nil), c.SearchPaths...),
		NativeModule: c.NativeModule,
	}, nil
}
