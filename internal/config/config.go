package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/env"

	"github.com/yossiovadia/premium-check/internal/constant"
)

// Config holds application configuration.
//
// Values are layered, lowest precedence first: built-in defaults, the YAML
// file named by CONFIG_FILE or --config, environment variables, flags.
type Config struct {
	// Name of this instance, used as the organization of self-signed certificates.
	Name string `yaml:"name"`

	// Server configuration
	Port         string `yaml:"port"`
	DebugMode    bool   `yaml:"debug"`
	MaxBatchSize int    `yaml:"maxBatchSize"`

	Lookup LookupConfig `yaml:"lookup"`
	TLS    TLSConfig    `yaml:"tls"`

	// ConfigFile is the YAML file the configuration was read from, if any.
	ConfigFile string `yaml:"-"`
}

// LookupConfig configures the client of the authoritative profile service.
type LookupConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	Timeout        time.Duration `yaml:"timeout"`
	RetryDelay     time.Duration `yaml:"retryDelay"`
	MaxConcurrency int           `yaml:"maxConcurrency"`
	UserAgent      string        `yaml:"userAgent"`
}

func defaults() *Config {
	return &Config{
		Name:         "premium-check",
		Port:         constant.DefaultPort,
		MaxBatchSize: constant.DefaultMaxBatchSize,
		Lookup: LookupConfig{
			BaseURL:        constant.DefaultLookupBaseURL,
			Timeout:        constant.DefaultLookupTimeout,
			RetryDelay:     constant.DefaultRetryDelay,
			MaxConcurrency: constant.DefaultMaxConcurrency,
			UserAgent:      constant.DefaultUserAgent,
		},
		TLS: defaultTLSConfig(),
	}
}

// Load builds the configuration and parses args on fs. The returned config is validated.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	c := defaults()

	c.ConfigFile = configFileFromArgs(args, env.GetString("CONFIG_FILE", ""))
	if c.ConfigFile != "" {
		if err := c.loadFile(c.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := c.loadEnv(); err != nil {
		return nil, err
	}

	c.bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Address is the listen address of the HTTP server.
func (c *Config) Address() string {
	return ":" + c.Port
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var err error

	c.Name = env.GetString("INSTANCE_NAME", c.Name)
	c.Port = env.GetString("PORT", c.Port)
	if c.DebugMode, err = env.GetBool("DEBUG_MODE", c.DebugMode); err != nil {
		return fmt.Errorf("invalid DEBUG_MODE: %w", err)
	}
	if c.MaxBatchSize, err = env.GetInt("MAX_BATCH_SIZE", c.MaxBatchSize); err != nil {
		return fmt.Errorf("invalid MAX_BATCH_SIZE: %w", err)
	}

	c.Lookup.BaseURL = env.GetString("LOOKUP_BASE_URL", c.Lookup.BaseURL)
	c.Lookup.UserAgent = env.GetString("LOOKUP_USER_AGENT", c.Lookup.UserAgent)
	if c.Lookup.Timeout, err = getEnvDuration("LOOKUP_TIMEOUT", c.Lookup.Timeout); err != nil {
		return err
	}
	if c.Lookup.RetryDelay, err = getEnvDuration("LOOKUP_RETRY_DELAY", c.Lookup.RetryDelay); err != nil {
		return err
	}
	if c.Lookup.MaxConcurrency, err = env.GetInt("MAX_CONCURRENT_LOOKUPS", c.Lookup.MaxConcurrency); err != nil {
		return fmt.Errorf("invalid MAX_CONCURRENT_LOOKUPS: %w", err)
	}

	return c.TLS.loadEnv()
}

// bindFlags binds flags to the already merged values, so unset flags keep them.
func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Path to a YAML configuration file")
	fs.StringVar(&c.Name, "name", c.Name, "Name of this instance")
	fs.StringVar(&c.Port, "port", c.Port, "Port to listen on")
	fs.BoolVar(&c.DebugMode, "debug", c.DebugMode, "Enable debug logging and permissive CORS")
	fs.IntVar(&c.MaxBatchSize, "max-batch-size", c.MaxBatchSize, "Maximum number of players accepted per request")

	fs.StringVar(&c.Lookup.BaseURL, "lookup-base-url", c.Lookup.BaseURL, "Base URL of the profile lookup service")
	fs.DurationVar(&c.Lookup.Timeout, "lookup-timeout", c.Lookup.Timeout, "Timeout of a single lookup attempt")
	fs.DurationVar(&c.Lookup.RetryDelay, "lookup-retry-delay", c.Lookup.RetryDelay, "Wait before retrying a rate-limited lookup")
	fs.IntVar(&c.Lookup.MaxConcurrency, "max-concurrent-lookups", c.Lookup.MaxConcurrency, "Maximum in-flight lookups per request (0 = unbounded)")

	c.TLS.bindFlags(fs)
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("port must not be empty")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be positive, got %d", c.MaxBatchSize)
	}

	u, err := url.Parse(c.Lookup.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid lookup base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("lookup base URL %q must be an absolute http(s) URL", c.Lookup.BaseURL)
	}
	if c.Lookup.Timeout <= 0 {
		return fmt.Errorf("lookup timeout must be positive, got %s", c.Lookup.Timeout)
	}
	if c.Lookup.RetryDelay < 0 {
		return fmt.Errorf("lookup retry delay must not be negative, got %s", c.Lookup.RetryDelay)
	}

	return c.TLS.validate()
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// configFileFromArgs finds --config ahead of the real flag parse, since the
// file has to be loaded before flags are bound.
func configFileFromArgs(args []string, fallback string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "config" || !strings.HasPrefix(arg, "-") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return fallback
}
