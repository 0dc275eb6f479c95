// Package redcap is a client for the REDCap API that adapts to the version
// of the server it talks to.
//
// Every request is a form-encoded POST to a single endpoint carrying the
// project token in its body. The client validates inputs before sending,
// resolves the adapter for the server's release on first use, retries
// network failures with exponential backoff, and reports every failure as
// a *NetworkError, *HTTPError or *APIError.
package redcap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/redcap/pkg/redcap/adapter"
	"github.com/hashicorp-forge/redcap/pkg/redcap/params"
	"github.com/hashicorp-forge/redcap/pkg/redcap/types"
	"github.com/hashicorp-forge/redcap/pkg/redcap/version"
)

// Client talks to one REDCap project.
type Client struct {
	url        types.BaseURL
	token      types.Token
	httpClient *http.Client
	registry   *adapter.Registry
	retry      RetryConfig
	logger     hclog.Logger

	// Populated by the first successful version detection.
	mu       sync.Mutex
	detected *detection
}

type detection struct {
	version version.Version
	adapter adapter.Adapter
}

// NewClient creates a client from cfg. It does not contact the server.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	c := *cfg
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid REDCap client config: %w", err)
	}

	u, err := types.NewBaseURL(c.URL)
	if err != nil {
		return nil, err
	}
	tok, err := types.NewToken(c.Token)
	if err != nil {
		return nil, err
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = c.NewHTTPClient()
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = *c.MaxRetries
	retry.InitialBackoff = c.RetryDelay

	return &Client{
		url:        u,
		token:      tok,
		httpClient: httpClient,
		registry:   c.Registry,
		retry:      retry,
		logger:     c.Logger.Named("redcap-client"),
	}, nil
}

// URL returns the API endpoint.
func (c *Client) URL() string {
	return c.url.String()
}

// Adapter returns the adapter for the server's version, detecting the
// version on first use. A version that cannot be parsed or is not
// supported fails the call and is not remembered.
func (c *Client) Adapter(ctx context.Context) (adapter.Adapter, error) {
	d, err := c.detect(ctx)
	if err != nil {
		return adapter.Adapter{}, err
	}
	return d.adapter, nil
}

// Version returns the server's version, detecting it on first use.
func (c *Client) Version(ctx context.Context) (version.Version, error) {
	d, err := c.detect(ctx)
	if err != nil {
		return version.Version{}, err
	}
	return d.version, nil
}

// Features returns the capabilities of the server's release.
func (c *Client) Features(ctx context.Context) (adapter.FeatureSet, error) {
	a, err := c.Adapter(ctx)
	if err != nil {
		return adapter.FeatureSet{}, err
	}
	return a.Features(), nil
}

func (c *Client) detect(ctx context.Context) (*detection, error) {
	c.mu.Lock()
	d := c.detected
	c.mu.Unlock()
	if d != nil {
		return d, nil
	}

	// Concurrent first calls may both fetch; any result for the same server
	// is equivalent, so the first one stored wins.
	raw, err := c.ExportVersion(ctx)
	if err != nil {
		return nil, err
	}
	v, err := version.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedVersion, err)
	}
	a, ok := c.registry.Select(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s (minimum supported is %s)",
			ErrUnsupportedVersion, v, c.registry.MinimumSupported())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detected == nil {
		c.detected = &detection{version: v, adapter: a}
		c.logger.Info("detected REDCap version",
			"version", v.String(),
			"adapter", a.Name(),
		)
	}
	return c.detected, nil
}

// prepare resolves the adapter, checks op is available, and applies the
// adapter's defaults under p.
func (c *Client) prepare(ctx context.Context, op adapter.Operation, p params.Params) (adapter.Adapter, params.Params, error) {
	a, err := c.Adapter(ctx)
	if err != nil {
		return adapter.Adapter{}, nil, err
	}
	if !a.IsOperationAvailable(op) {
		return adapter.Adapter{}, nil, fmt.Errorf("%w: %s on %s", ErrOperationUnavailable, op, a)
	}
	return a, p.WithDefaults(a.DefaultParams()), nil
}

// response is a 2xx answer with its body read.
type response struct {
	contentType string
	body        []byte
}

// do sends p (plus the token) and returns the body of a 2xx response.
// Network failures are retried; every other failure returns at once.
func (c *Client) do(ctx context.Context, op adapter.Operation, p params.Params) (*response, error) {
	form := p.Clone()
	form["token"] = c.token.Value()
	body := form.Encode()

	logger := c.logger.With("op", string(op), "request_id", uuid.NewString())

	var (
		attempts int
		status   int
		result   *response
	)
	operation := func() error {
		attempts++
		logger.Debug("sending request", "attempt", attempts)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url.String(), strings.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("error creating request: %w", err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json, text/plain, */*")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return &NetworkError{Op: string(op), Attempts: attempts, Err: err}
		}
		defer resp.Body.Close()

		// A response arrived, so nothing below is retried.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return backoff.Permanent(&NetworkError{
				Op: string(op), Attempts: attempts,
				Err: fmt.Errorf("error reading response: %w", err),
			})
		}
		status = resp.StatusCode
		result = &response{contentType: resp.Header.Get("Content-Type"), body: data}
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("request failed, retrying",
			"attempt", attempts,
			"backoff", next,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, c.retry.newBackOff(ctx), notify); err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		logger.Debug("request failed", "status", status)
		return nil, &HTTPError{Op: string(op), StatusCode: status, Message: string(result.body)}
	}
	if apiErr := parseAPIError(op, result.body); apiErr != nil {
		logger.Debug("REDCap reported an error", "message", apiErr.Message)
		return nil, apiErr
	}

	logger.Debug("request complete", "attempts", attempts, "bytes", len(result.body))
	return result, nil
}

// parseAPIError returns the error carried by a JSON object with a non-null
// "error" member, or nil if body is not such an object. A string error is
// the message; an object contributes its "message" member; anything else
// is kept as raw JSON.
func parseAPIError(op adapter.Operation, body []byte) *APIError {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var payload struct {
		Error json.RawMessage `json:"error"`
		Code  json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil || isNull(payload.Error) {
		return nil
	}

	apiErr := &APIError{Op: string(op), Message: jsonText(payload.Error)}
	if !isNull(payload.Code) {
		apiErr.Code = jsonText(payload.Code)
	}
	return apiErr
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// jsonText renders a JSON value as a message: strings unquoted, objects by
// their "message" member, everything else verbatim.
func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != nil {
		return *obj.Message
	}
	return string(raw)
}

// doJSON sends p and decodes a JSON body into out.
func (c *Client) doJSON(ctx context.Context, op adapter.Operation, p params.Params, out any) error {
	resp, err := c.do(ctx, op, p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return decodeError(op, "response", err)
	}
	return nil
}

// decodeError reports a 2xx body that does not hold what op expects.
func decodeError(op adapter.Operation, what string, err error) *APIError {
	return &APIError{Op: string(op), Message: "malformed " + what, Err: err}
}

// doText sends p and returns the body as trimmed text.
func (c *Client) doText(ctx context.Context, op adapter.Operation, p params.Params) (string, error) {
	resp, err := c.do(ctx, op, p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(resp.body)), nil
}
