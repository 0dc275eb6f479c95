package redcap

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/http2"

	"github.com/hashicorp-forge/redcap/pkg/redcap/adapter"
	"github.com/hashicorp-forge/redcap/pkg/redcap/types"
)

// MaxRetries is the most automatic retries the client performs after the
// first attempt of a request.
const MaxRetries = 3

// Config contains configuration for the REDCap API client.
//
// Example configuration (HCL):
//
//	redcap {
//	  url         = "https://redcap.example.edu/api/"
//	  token       = "0123456789ABCDEF0123456789ABCDEF"
//	  timeout     = "30s"
//	  max_retries = 3
//	  retry_delay = "100ms"
//	}
type Config struct {
	// URL is the REDCap API endpoint, usually ending in "/api/".
	URL string `json:"url"`

	// Token is the project API token. It is sent in the request body only.
	Token string `json:"-"`

	// TLSVerify controls TLS certificate verification.
	// Set to false only for development/testing with self-signed certs.
	TLSVerify *bool `json:"tlsVerify,omitempty"`

	// Timeout bounds a single attempt.
	// Default: 30 seconds
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries after a network failure. At most MaxRetries.
	// Default: 3
	MaxRetries *int `json:"maxRetries,omitempty"`

	// RetryDelay is the first backoff interval; later ones double.
	// Default: 100 milliseconds
	RetryDelay time.Duration `json:"retryDelay,omitempty"`

	// Logger (optional).
	Logger hclog.Logger `json:"-"`

	// HTTPClient overrides the client built by NewHTTPClient (optional).
	HTTPClient *http.Client `json:"-"`

	// Registry overrides the built-in adapters (optional).
	Registry *adapter.Registry `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	tlsVerify := true
	maxRetries := MaxRetries
	return &Config{
		TLSVerify:  &tlsVerify,
		Timeout:    30 * time.Second,
		MaxRetries: &maxRetries,
		RetryDelay: 100 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.TLSVerify == nil {
		c.TLSVerify = defaults.TLSVerify
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.MaxRetries == nil {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaults.RetryDelay
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	if c.Registry == nil {
		c.Registry = adapter.Default()
	}
}

// Validate checks if the configuration is valid. All problems are reported
// together.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := types.NewBaseURL(c.URL); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := types.NewToken(c.Token); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Timeout < 0 {
		result = multierror.Append(result,
			fmt.Errorf("timeout must be positive, got: %v", c.Timeout))
	}
	if c.MaxRetries != nil && (*c.MaxRetries < 0 || *c.MaxRetries > MaxRetries) {
		result = multierror.Append(result,
			fmt.Errorf("max_retries must be between 0 and %d, got: %d", MaxRetries, *c.MaxRetries))
	}
	if c.RetryDelay < 0 {
		result = multierror.Append(result,
			fmt.Errorf("retry_delay must be non-negative, got: %v", c.RetryDelay))
	}

	return result.ErrorOrNil()
}

// NewHTTPClient creates a configured HTTP client for the REDCap API.
func (c *Config) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	// Configure TLS verification
	if c.TLSVerify != nil && !*c.TLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	// Negotiate HTTP/2 over TLS when the server offers it.
	if err := http2.ConfigureTransport(transport); err != nil {
		c.logger().Warn("unable to enable HTTP/2, using HTTP/1.1", "error", err)
	}

	return &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}
}

func (c *Config) logger() hclog.Logger {
	if c.Logger == nil {
		return hclog.NewNullLogger()
	}
	return c.Logger
}
