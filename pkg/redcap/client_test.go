package redcap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/redcap/internal/redcapmock"
	"github.com/hashicorp-forge/redcap/pkg/redcap/adapter"
	"github.com/hashicorp-forge/redcap/pkg/redcap/params"
	"github.com/hashicorp-forge/redcap/pkg/redcap/types"
	"github.com/hashicorp-forge/redcap/pkg/redcap/version"
)

const testToken = redcapmock.DefaultToken

func testConfig(url string) *Config {
	return &Config{
		URL:        url,
		Token:      testToken,
		RetryDelay: time.Millisecond,
		Logger:     hclog.NewNullLogger(),
	}
}

// newMockClient starts a fake server and returns a client pointed at it.
func newMockClient(t *testing.T) (*redcapmock.Server, *Client) {
	t.Helper()
	mock := redcapmock.New(nil, nil)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	c, err := NewClient(testConfig(srv.URL + redcapmock.Path))
	require.NoError(t, err)
	return mock, c
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTransportClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	cfg := testConfig("https://redcap.example.edu/api/")
	cfg.HTTPClient = &http.Client{Transport: rt}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	cfg := testConfig("ftp://redcap.example.edu/api/")
	cfg.Token = "short"
	_, err = NewClient(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
	assert.Contains(t, err.Error(), "token")
	assert.NotContains(t, err.Error(), "short")
}

func TestClient_RetriesNetworkFailures(t *testing.T) {
	drop := redcapmock.Failure{Drop: true}

	t.Run("succeeds on the last retry", func(t *testing.T) {
		mock, c := newMockClient(t)
		mock.FailNext("version", drop, drop, drop)

		v, err := c.ExportVersion(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "14.5.10", v)
		assert.Equal(t, 1+MaxRetries, mock.Requests("version"))
	})

	t.Run("gives up after the retry cap", func(t *testing.T) {
		mock, c := newMockClient(t)
		mock.FailNext("version", drop, drop, drop, drop)

		_, err := c.ExportVersion(context.Background())
		require.Error(t, err)

		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, 1+MaxRetries, netErr.Attempts)
		assert.Equal(t, 1+MaxRetries, mock.Requests("version"))
		assert.True(t, IsRetryable(err))
	})
}

func TestClient_TransportErrorsAreCounted(t *testing.T) {
	var calls atomic.Int32
	c := newTransportClient(t, func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	})

	_, err := c.ExportVersion(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, int32(1+MaxRetries), calls.Load())
	assert.Contains(t, netErr.Error(), "connection refused")
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

func TestClient_BodyReadFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTransportClient(t, func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: http.StatusOK, Body: failingBody{}, Header: http.Header{}}, nil
	})

	_, err := c.ExportVersion(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_HTTPErrorsAreNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			mock, c := newMockClient(t)
			mock.FailNext("version", redcapmock.Failure{Status: status, Body: "nope"})

			_, err := c.ExportVersion(context.Background())
			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, status, httpErr.StatusCode)
			assert.Equal(t, "nope", httpErr.Message)
			assert.Equal(t, 1, mock.Requests("version"))
			assert.False(t, IsRetryable(err))
		})
	}
}

func TestClient_APIErrorInSuccessfulResponse(t *testing.T) {
	mock, c := newMockClient(t)
	mock.FailNext("version", redcapmock.Failure{APIError: "The token you provided is invalid"})

	_, err := c.ExportVersion(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsInvalidToken())
	assert.True(t, IsInvalidToken(err))
	assert.Equal(t, 1, mock.Requests("version"))
}

func TestClient_MalformedSuccessBodyIsAPIError(t *testing.T) {
	tests := []struct {
		name string
		call func(*Client) error
	}{
		{"instruments", func(c *Client) error {
			_, err := c.ExportInstruments(context.Background())
			return err
		}},
		{"records", func(c *Client) error {
			_, err := c.ExportRecords(context.Background(), ExportOptions{})
			return err
		}},
		{"import", func(c *Client) error {
			_, err := c.ImportRecords(context.Background(), []Record{{"record_id": "9"}}, ImportOptions{})
			return err
		}},
	}
	content := map[string]string{"instruments": "instrument", "records": "record", "import": "record"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, c := newMockClient(t)
			mock.FailNext(content[tt.name], redcapmock.Failure{Body: "<html><body>Service temporarily down for maintenance</body></html>"})

			err := tt.call(c)
			require.Error(t, err)

			var (
				apiErr  *APIError
				netErr  *NetworkError
				httpErr *HTTPError
			)
			require.ErrorAs(t, err, &apiErr)
			assert.False(t, errors.As(err, &netErr))
			assert.False(t, errors.As(err, &httpErr))
			assert.Error(t, apiErr.Err)
			assert.Contains(t, err.Error(), "malformed")
			assert.False(t, IsRetryable(err))
			assert.Equal(t, http.StatusBadGateway, HTTPStatusFor(err))
			assert.Equal(t, 1, mock.Requests(content[tt.name]))
		})
	}
}

func TestClient_NonStringAPIError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"object with message", `{"error": {"message": "The token you provided is invalid"}}`, "The token you provided is invalid"},
		{"number", `{"error": 123}`, "123"},
		{"object without message", `{"error": {"field": "age"}}`, `{"field": "age"}`},
		{"array", `{"error": ["a", "b"]}`, `["a", "b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, c := newMockClient(t)
			mock.FailNext("project", redcapmock.Failure{Body: tt.body})

			_, err := c.ExportProjectInfo(context.Background())
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Nil(t, apiErr.Err)
		})
	}
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		body    string
		message string
		code    string
		isErr   bool
	}{
		{body: `{"error": "nope"}`, message: "nope", isErr: true},
		{body: `{"error": "nope", "code": 7}`, message: "nope", code: "7", isErr: true},
		{body: `{"error": "nope", "code": "E7"}`, message: "nope", code: "E7", isErr: true},
		{body: `{"error": {"message": "x"}}`, message: "x", isErr: true},
		{body: `{"error": 123}`, message: "123", isErr: true},
		{body: `{"error": false}`, message: "false", isErr: true},
		{body: `{"error": null}`},
		{body: `{"count": 1}`},
		{body: `[{"error": "not an envelope"}]`},
		{body: `14.5.10`},
		{body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got := parseAPIError(adapter.OpProjectInfo, []byte(tt.body))
			if !tt.isErr {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.message, got.Message)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, string(adapter.OpProjectInfo), got.Op)
		})
	}
}

func TestClient_AdapterDefaultParams(t *testing.T) {
	t.Run("built-in releases ask for JSON errors", func(t *testing.T) {
		for _, v := range []string{"14.5.10", "15.2.0", "16.1.3"} {
			mock, c := newMockClient(t)
			mock.SetVersion(v)

			_, err := c.ExportInstruments(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"json"}, mock.LastForm("instrument")["returnFormat"], v)
		}
	})

	t.Run("defaults follow the selected adapter", func(t *testing.T) {
		next := adapter.NewBase(adapter.Options{
			Name:     "redcap-16-test",
			Versions: version.AtLeast(version.New(16, 0, 0)),
			DefaultParams: func() params.Params {
				return params.Params{"returnFormat": "json", "decimalCharacter": ".", "format": "xml"}
			},
		})
		registry, err := adapter.NewRegistry(adapter.V14(), adapter.V15(), next)
		require.NoError(t, err)

		tests := []struct {
			version string
			want    []string
		}{
			{"15.4.2", nil},
			{"16.0.0", []string{"."}},
		}
		for _, tt := range tests {
			mock := redcapmock.New(nil, nil)
			mock.SetVersion(tt.version)
			srv := httptest.NewServer(mock.Handler())
			t.Cleanup(srv.Close)
			cfg := testConfig(srv.URL + redcapmock.Path)
			cfg.Registry = registry
			c, err := NewClient(cfg)
			require.NoError(t, err)

			_, err = c.ExportInstruments(context.Background())
			require.NoError(t, err)

			form := mock.LastForm("instrument")
			assert.Equal(t, tt.want, form["decimalCharacter"], tt.version)
			assert.Equal(t, []string{"json"}, form["returnFormat"], tt.version)
			// The request's own parameters win over defaults.
			assert.Equal(t, []string{"json"}, form["format"], tt.version)
		}
	})
}

func TestClient_VersionIsCached(t *testing.T) {
	mock, c := newMockClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a, err := c.Adapter(ctx)
		require.NoError(t, err)
		assert.Equal(t, adapter.NameV14, a.Name())
	}
	_, err := c.ExportInstruments(ctx)
	require.NoError(t, err)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "14.5.10", v.String())
	assert.Equal(t, 1, mock.Requests("version"))
}

func TestClient_UnsupportedVersionIsNotCached(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{"too old", "13.9.2"},
		{"unparsable", "fourteen"},
		{"two segments", "14.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, c := newMockClient(t)
			ctx := context.Background()
			mock.SetVersion(tt.version)

			_, err := c.Features(ctx)
			require.ErrorIs(t, err, ErrUnsupportedVersion)

			mock.SetVersion("15.1.0")
			features, err := c.Features(ctx)
			require.NoError(t, err)
			assert.True(t, features.FileRepository)
			assert.Equal(t, 2, mock.Requests("version"))
		})
	}
}

func TestClient_ValidationFailsBeforeNetwork(t *testing.T) {
	mock, c := newMockClient(t)
	ctx := context.Background()

	_, err := c.ExportSurveyLink(ctx, SurveyLinkOptions{})
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))

	_, err = c.ImportRecords(ctx, nil, ImportOptions{})
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))

	_, err = c.ExportRecords(ctx, ExportOptions{Type: "wide"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFor(err))

	assert.Equal(t, 0, mock.Requests(""))
}

func TestClient_CancellationIsNotRetried(t *testing.T) {
	t.Run("already canceled", func(t *testing.T) {
		mock, c := newMockClient(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.ExportVersion(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, mock.Requests(""))
	})

	t.Run("deadline while waiting", func(t *testing.T) {
		mock, c := newMockClient(t)
		mock.FailNext("version", redcapmock.Failure{Delay: 5 * time.Second})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.ExportVersion(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, IsRetryable(err))
		assert.Equal(t, 1, mock.Requests("version"))
	})
}

func TestClient_TokenOnlyInBody(t *testing.T) {
	var (
		query   string
		headers http.Header
		body    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		headers = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		io.WriteString(w, "14.0.3")
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL + "/api/"))
	require.NoError(t, err)
	_, err = c.ExportVersion(context.Background())
	require.NoError(t, err)

	assert.Contains(t, body, "token="+testToken)
	assert.Contains(t, body, "content=version")
	assert.NotContains(t, query, testToken)
	for name, values := range headers {
		for _, v := range values {
			assert.NotContains(t, v, testToken, "header %s", name)
		}
	}
	assert.Equal(t, "application/x-www-form-urlencoded", headers.Get("Content-Type"))
}

func TestClient_TokenIsNeverLogged(t *testing.T) {
	var logs strings.Builder
	mock := redcapmock.New(nil, nil)
	mock.FailNext("version", redcapmock.Failure{Drop: true})
	srv := httptest.NewServer(mock.Handler())
	defer srv.Close()

	cfg := testConfig(srv.URL + redcapmock.Path)
	cfg.Logger = hclog.New(&hclog.LoggerOptions{Output: &logs, Level: hclog.Trace})
	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = c.ExportInstruments(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, logs.String())
	assert.NotContains(t, logs.String(), testToken)
}

func TestClient_OperationUnavailable(t *testing.T) {
	mock, c := newMockClient(t)
	ctx := context.Background()

	_, err := c.ExportFileRepository(ctx, types.PositiveInt{})
	require.ErrorIs(t, err, ErrOperationUnavailable)
	_, err = c.ExportProjectSettings(ctx)
	require.ErrorIs(t, err, ErrOperationUnavailable)
	assert.Equal(t, 0, mock.Requests("fileRepository"))
	assert.Equal(t, 0, mock.Requests("project_settings"))

	mock.SetVersion("15.0.0")
	_, c = newMockClientFor(t, mock)
	entries, err := c.ExportFileRepository(ctx, types.PositiveInt{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].IsFolder())
	assert.False(t, entries[1].IsFolder())

	settings, err := c.ExportProjectSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mock Study", settings["project_title"])
}

// newMockClientFor serves an existing fake server to a fresh client.
func newMockClientFor(t *testing.T, mock *redcapmock.Server) (*redcapmock.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)
	c, err := NewClient(testConfig(srv.URL + redcapmock.Path))
	require.NoError(t, err)
	return mock, c
}
