// Package config loads the redcap CLI configuration from HCL, JSON or TOML
// files and the environment.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hashicorp-forge/redcap/pkg/redcap"
)

// Environment variables that override the file.
const (
	EnvURL      = "REDCAP_API_URL"
	EnvToken    = "REDCAP_API_TOKEN"
	EnvLogLevel = "REDCAP_LOG_LEVEL"
)

// Config is the CLI configuration.
//
// Example (HCL):
//
//	log_level = "debug"
//	log_file  = "/var/log/redcap.log"
//
//	redcap {
//	  url         = "https://redcap.example.edu/api/"
//	  token       = "0123456789ABCDEF0123456789ABCDEF"
//	  timeout     = "30s"
//	  max_retries = 3
//	  retry_delay = "100ms"
//	}
type Config struct {
	LogLevel string  `hcl:"log_level,optional" toml:"log_level"`
	LogFile  string  `hcl:"log_file,optional" toml:"log_file"`
	REDCap   *REDCap `hcl:"redcap,block" toml:"redcap"`
	Mock     *Mock   `hcl:"mock,block" toml:"mock"`
}

// REDCap configures the API client. Durations use Go syntax ("30s").
type REDCap struct {
	URL        string `hcl:"url,optional" toml:"url"`
	Token      string `hcl:"token,optional" toml:"token"`
	Timeout    string `hcl:"timeout,optional" toml:"timeout"`
	MaxRetries *int   `hcl:"max_retries,optional" toml:"max_retries"`
	RetryDelay string `hcl:"retry_delay,optional" toml:"retry_delay"`
	TLSVerify  *bool  `hcl:"tls_verify,optional" toml:"tls_verify"`
}

// Mock configures the fake server started by the mock command.
type Mock struct {
	Addr    string `hcl:"addr,optional" toml:"addr"`
	Fixture string `hcl:"fixture,optional" toml:"fixture"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "warn",
		REDCap:   &REDCap{},
		Mock:     &Mock{Addr: "127.0.0.1:8080"},
	}
}

// Load reads the file at path from fs. Files ending in .toml are decoded as
// TOML; anything else goes through HCL, which also accepts .json.
func Load(fs afero.Fs, path string) (*Config, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(src), cfg); err != nil {
			return nil, fmt.Errorf("error decoding TOML config: %w", err)
		}
	default:
		// A block absent from the file decodes as nil.
		if err := hclsimple.Decode(path, src, nil, cfg); err != nil {
			return nil, fmt.Errorf("error decoding config: %w", err)
		}
	}

	defaults := Default()
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.REDCap == nil {
		cfg.REDCap = defaults.REDCap
	}
	if cfg.Mock == nil {
		cfg.Mock = defaults.Mock
	}
	if cfg.Mock.Addr == "" {
		cfg.Mock.Addr = defaults.Mock.Addr
	}
	return cfg, nil
}

// ApplyEnv overrides file values with the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if c.REDCap == nil {
		c.REDCap = &REDCap{}
	}
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.REDCap.URL = v
	}
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.REDCap.Token = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// Validate checks the fields that do not depend on the command being run.
func (c *Config) Validate() error {
	var result *multierror.Error

	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result,
			fmt.Errorf("log_level must be one of trace, debug, info, warn, error or off, got: %q", c.LogLevel))
	}
	if c.REDCap != nil {
		if _, err := parseDuration("redcap.timeout", c.REDCap.Timeout); err != nil {
			result = multierror.Append(result, err)
		}
		if _, err := parseDuration("redcap.retry_delay", c.REDCap.RetryDelay); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// ClientConfig converts the redcap block into a validated client
// configuration.
func (c *Config) ClientConfig(logger hclog.Logger) (*redcap.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	r := c.REDCap
	if r == nil {
		r = &REDCap{}
	}

	timeout, _ := parseDuration("redcap.timeout", r.Timeout)
	retryDelay, _ := parseDuration("redcap.retry_delay", r.RetryDelay)
	cfg := &redcap.Config{
		URL:        r.URL,
		Token:      r.Token,
		TLSVerify:  r.TLSVerify,
		Timeout:    timeout,
		MaxRetries: r.MaxRetries,
		RetryDelay: retryDelay,
		Logger:     logger,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"30s\", got: %q", field, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got: %q", field, s)
	}
	return d, nil
}

// NewLogger returns the CLI logger. Output goes to a size-rotated file when
// log_file is set and to stderr otherwise. The returned closer releases the
// file.
func (c *Config) NewLogger(name string, stderr io.Writer) (hclog.Logger, io.Closer) {
	var (
		out    io.Writer = stderr
		closer io.Closer = nopCloser{}
	)
	if c.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out, closer = lj, lj
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(c.LogLevel),
		Output: out,
	}), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
