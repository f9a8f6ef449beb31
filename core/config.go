package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Configuration for the GraphJin Neo4j compiler
type Config struct {
	// Path to the YAML file describing node types, unions and relationship
	// properties. Relative paths are resolved against the config path.
	SchemaFile string `mapstructure:"schema_file" json:"schema_file" yaml:"schema_file" jsonschema:"title=Schema File"`

	// How often the schema file is checked for changes in development mode.
	// Values below one second disable the watcher.
	SchemaPollDuration time.Duration `mapstructure:"schema_poll_duration" json:"schema_poll_duration" yaml:"schema_poll_duration" jsonschema:"title=Schema Poll Duration,default=10s"`

	// Number of compiled requests kept in the cache
	CacheSize int `mapstructure:"cache_size" json:"cache_size" yaml:"cache_size" jsonschema:"title=Cache Size,default=5000"`

	// Compile every request, even when an identical one was compiled before
	DisableCache bool `mapstructure:"disable_cache" json:"disable_cache" yaml:"disable_cache" jsonschema:"title=Disable Cache,default=false"`

	// This is a list of variables that can be leveraged in your queries.
	// They are merged under the request variables.
	Vars map[string]string `mapstructure:"variables" json:"variables" yaml:"variables" jsonschema:"title=Variables"`

	// Log compiled statements and other debug information
	Debug bool `jsonschema:"title=Debug,default=false"`

	// Log level: debug, info, warn or error
	LogLevel string `mapstructure:"log_level" json:"log_level" yaml:"log_level" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error"`

	// Log format: auto, json or console
	LogFormat string `mapstructure:"log_format" json:"log_format" yaml:"log_format" jsonschema:"title=Log Format,enum=auto,enum=json,enum=console"`

	// Production mode disables the schema watcher
	Production bool `jsonschema:"title=Production Mode,default=false"`

	// Folder the config (and relative schema file) was read from
	ConfigPath string `mapstructure:"config_path" json:"config_path" yaml:"config_path" jsonschema:"title=Config Path"`

	viper *viper.Viper
}

var (
	logLevels  = []string{"", "debug", "info", "warn", "error"}
	logFormats = []string{"", "auto", "json", "console"}
)

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error

	if c.SchemaFile == "" {
		errs = append(errs, errors.New("schema_file is required"))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size must not be negative: %d", c.CacheSize))
	}
	if !oneOf(c.LogLevel, logLevels) {
		errs = append(errs, fmt.Errorf("unsupported log_level %q", c.LogLevel))
	}
	if !oneOf(c.LogFormat, logFormats) {
		errs = append(errs, fmt.Errorf("unsupported log_format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ShouldUseJSONLogs returns true if logs should be in JSON format.
func (c *Config) ShouldUseJSONLogs() bool {
	return c.LogFormat == "json" || (c.LogFormat == "auto" && c.Production)
}

// AbsolutePath returns the absolute path of the file
func (c *Config) AbsolutePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ConfigPath, p)
}

// ReadInConfig reads in the config file, merges the config it inherits from
// (if any) and applies GJ_ prefixed environment overrides
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but it also takes a filesytem as an argument
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	vi := newViper(cp, filepath.Base(configFile))

	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		return nil, err
	}

	if pcf := vi.GetString("inherits"); pcf != "" {
		cf := vi.ConfigFileUsed()
		vi = newViper(cp, pcf)
		if fs != nil {
			vi.SetFs(fs)
		}

		if err := vi.ReadInConfig(); err != nil {
			return nil, err
		}

		if value := vi.GetString("inherits"); value != "" {
			return nil, fmt.Errorf("inherited config '%s' cannot itself inherit '%s'", pcf, value)
		}

		vi.SetConfigFile(cf)

		if err := vi.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "GJ_") {
			kv := strings.SplitN(e, "=", 2)
			setKeyValue(vi, kv[0], kv[1])
		}
	}

	config := &Config{viper: vi}

	if err := vi.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}
	config.ConfigPath = cp

	return config, nil
}

// NewConfig creates a configuration from the provided config string
func NewConfig(config, format string) (*Config, error) {
	if format == "" {
		format = "yaml"
	}

	vi := newViperWithDefaults()
	vi.SetConfigType(format)

	if err := vi.ReadConfig(strings.NewReader(config)); err != nil {
		return nil, err
	}

	c := &Config{viper: vi}

	if err := vi.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	return c, nil
}

func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("schema_file", "schema.yml")
	vi.SetDefault("schema_poll_duration", "10s")
	vi.SetDefault("cache_size", 5000)
	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "auto")

	vi.SetDefault("env", "development")
	vi.BindEnv("env", "GO_ENV") //nolint:errcheck

	return vi
}

func newViper(configPath, configFile string) *viper.Viper {
	vi := newViperWithDefaults()
	vi.SetConfigName(strings.TrimSuffix(configFile, filepath.Ext(configFile)))

	if configPath == "" {
		vi.AddConfigPath("./config")
	} else {
		vi.AddConfigPath(configPath)
	}

	return vi
}

// setKeyValue maps GJ_CACHE_SIZE to cache_size and GJ_VARIABLES__ORG to
// variables.org
func setKeyValue(vi *viper.Viper, key, value string) {
	key = strings.ToLower(strings.TrimPrefix(key, "GJ_"))
	key = strings.ReplaceAll(key, "__", ".")
	vi.Set(key, value)
}

// GetConfigName returns the name of the configuration for the GO_ENV
// environment
func GetConfigName() string {
	goEnv := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))

	switch goEnv {
	case "production", "prod":
		return "prod"

	case "staging", "stage":
		return "stage"

	case "testing", "test":
		return "test"

	case "development", "dev", "":
		return "dev"

	default:
		return goEnv
	}
}

func oneOf(v string, list []string) bool {
	for _, s := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
