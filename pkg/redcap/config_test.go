package redcap

import (
	"net/http"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, MaxRetries, *cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryDelay)
	assert.True(t, *cfg.TLSVerify)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{URL: "https://redcap.example.edu/api/", Token: testToken}
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr []string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "zero retries", modify: func(c *Config) { c.MaxRetries = intPtr(0) }},
		{
			name:    "too many retries",
			modify:  func(c *Config) { c.MaxRetries = intPtr(4) },
			wantErr: []string{"max_retries"},
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Timeout = -time.Second },
			wantErr: []string{"timeout"},
		},
		{
			name:    "lowercase token",
			modify:  func(c *Config) { c.Token = "0123456789abcdef0123456789abcdef" },
			wantErr: []string{"token"},
		},
		{
			name: "everything wrong",
			modify: func(c *Config) {
				c.URL = "https://redcap.example.edu/api/?x=1"
				c.Token = ""
				c.RetryDelay = -time.Millisecond
			},
			wantErr: []string{"url", "token", "retry_delay"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var merr *multierror.Error
			require.ErrorAs(t, err, &merr)
			assert.Len(t, merr.Errors, len(tt.wantErr))
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestConfig_ValidateNeverPrintsToken(t *testing.T) {
	cfg := &Config{URL: "https://redcap.example.edu/api/", Token: "0123456789abcdef0123456789abcdef"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), cfg.Token)
}

func TestConfig_NewHTTPClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLSVerify = boolPtr(false)
	cfg.Timeout = 5 * time.Second

	client := cfg.NewHTTPClient()
	assert.Equal(t, 5*time.Second, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
	assert.Contains(t, transport.TLSClientConfig.NextProtos, "h2")
}

func TestNewClient_AppliesRetryConfig(t *testing.T) {
	cfg := testConfig("https://redcap.example.edu/api/")
	cfg.MaxRetries = intPtr(1)
	cfg.RetryDelay = 250 * time.Millisecond

	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, c.retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, c.retry.InitialBackoff)
	assert.Equal(t, "https://redcap.example.edu/api/", c.URL())

	// The caller's config is left untouched.
	assert.Nil(t, cfg.Registry)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
}
