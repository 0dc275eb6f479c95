package redcap

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HealthStatus classifies the outcome of a health check.
type HealthStatus string

const (
	HealthOK           HealthStatus = "ok"
	HealthInvalidToken HealthStatus = "invalid_token"
	HealthPermission   HealthStatus = "permission"
	HealthUnreachable  HealthStatus = "unreachable"
	HealthHTTPError    HealthStatus = "http_error"
	HealthAPIError     HealthStatus = "api_error"
	HealthUnsupported  HealthStatus = "unsupported_version"
)

// HealthReport is the result of Check.
type HealthReport struct {
	Status        HealthStatus  `json:"status" yaml:"status"`
	RemoteVersion string        `json:"remote_version,omitempty" yaml:"remote_version,omitempty"`
	Adapter       string        `json:"adapter,omitempty" yaml:"adapter,omitempty"`
	StatusCode    int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Message       string        `json:"message,omitempty" yaml:"message,omitempty"`
	Latency       time.Duration `json:"latency" yaml:"latency"`
}

// Healthy reports whether the check passed.
func (r *HealthReport) Healthy() bool {
	return r.Status == HealthOK
}

// Check verifies the server is reachable, the token is accepted and the
// release is supported. Failures are reported in the HealthReport, not as an
// error; the error is only non-nil when ctx ends first.
func (c *Client) Check(ctx context.Context) (*HealthReport, error) {
	start := time.Now()
	report := &HealthReport{}

	v, err := c.Version(ctx)
	if err == nil {
		report.RemoteVersion = v.String()
		// Project info needs a valid token on every release.
		_, err = c.ExportProjectInfo(ctx)
	}
	report.Latency = time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		classify(report, err)
		c.logger.Warn("health check failed", "status", string(report.Status), "error", err)
		return report, nil
	}

	if a, err := c.Adapter(ctx); err == nil {
		report.Adapter = a.Name()
	}
	report.Status = HealthOK
	return report, nil
}

func classify(r *HealthReport, err error) {
	r.Message = err.Error()

	var (
		httpErr *HTTPError
		apiErr  *APIError
	)
	switch {
	case errors.As(err, &apiErr) && apiErr.IsInvalidToken():
		r.Status = HealthInvalidToken
	case errors.As(err, &apiErr) && apiErr.IsPermissionError():
		r.Status = HealthPermission
	case errors.As(err, &apiErr):
		r.Status = HealthAPIError
	case errors.As(err, &httpErr):
		r.StatusCode = httpErr.StatusCode
		switch httpErr.StatusCode {
		case http.StatusUnauthorized:
			r.Status = HealthInvalidToken
		case http.StatusForbidden:
			r.Status = HealthPermission
		default:
			r.Status = HealthHTTPError
		}
	case errors.Is(err, ErrUnsupportedVersion):
		r.Status = HealthUnsupported
	default:
		r.Status = HealthUnreachable
	}
}
