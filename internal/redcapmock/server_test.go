package redcapmock

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, srv *httptest.Server, form url.Values) (int, string) {
	t.Helper()
	resp, err := http.PostForm(srv.URL+Path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(nil, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func form(kv ...string) url.Values {
	v := url.Values{"token": {DefaultToken}}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func TestServeVersion(t *testing.T) {
	s, srv := newTestServer(t)

	status, body := post(t, srv, form("content", "version"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "14.5.10", body)

	s.SetVersion("16.0.1")
	_, body = post(t, srv, form("content", "version"))
	assert.Equal(t, "16.0.1", body)
	assert.Equal(t, 2, s.Requests("version"))
	assert.Equal(t, 2, s.Requests(""))
}

func TestRejectsBadToken(t *testing.T) {
	_, srv := newTestServer(t)

	f := form("content", "project")
	f.Set("token", "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")
	status, body := post(t, srv, f)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "token you provided is invalid")
}

func TestUnknownContent(t *testing.T) {
	_, srv := newTestServer(t)

	status, body := post(t, srv, form("content", "bogus"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, `"error"`)
}

func TestExportRecords(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want []map[string]string
	}{
		{
			name: "all",
			form: form("content", "record", "format", "json"),
			want: DefaultFixture().Records,
		},
		{
			name: "by id and field",
			form: form("content", "record", "records[0]", "2", "fields[0]", "first_name"),
			want: []map[string]string{{"record_id": "2", "first_name": "Grace"}},
		},
		{
			name: "filter logic with escaping",
			form: form("content", "record", "filterLogic", `[email] = "ada@example.org"`),
			want: []map[string]string{DefaultFixture().Records[0]},
		},
		{
			name: "no match",
			form: form("content", "record", "filterLogic", `[email] = "nobody\"x"`),
			want: []map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newTestServer(t)
			status, body := post(t, srv, tt.form)
			require.Equal(t, http.StatusOK, status, body)

			var got []map[string]string
			require.NoError(t, json.Unmarshal([]byte(body), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExportRecordsEAV(t *testing.T) {
	_, srv := newTestServer(t)

	status, body := post(t, srv, form(
		"content", "record", "type", "eav",
		"fields[0]", "email",
		"filterLogic", `[email] = "grace@example.org"`,
	))
	require.Equal(t, http.StatusOK, status, body)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	require.NotEmpty(t, rows)
	for _, row := range rows {
		assert.Equal(t, "2", row["record"])
	}
}

func TestExportRecordsCSV(t *testing.T) {
	_, srv := newTestServer(t)

	status, body := post(t, srv, form("content", "record", "format", "csv", "records[0]", "1"))
	require.Equal(t, http.StatusOK, status)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "consent,email,first_name,record_id", lines[0])
	assert.Equal(t, "1,ada@example.org,Ada,1", lines[1])
}

func TestUnsupportedFilterLogic(t *testing.T) {
	_, srv := newTestServer(t)

	status, _ := post(t, srv, form("content", "record", "filterLogic", `[age] > 30`))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestImportRecords(t *testing.T) {
	t.Run("normal keeps existing values", func(t *testing.T) {
		s, srv := newTestServer(t)
		status, body := post(t, srv, form(
			"content", "record", "action", "import",
			"data", `[{"record_id":"1","first_name":"","consent":"0"}]`,
		))
		require.Equal(t, http.StatusOK, status, body)
		assert.JSONEq(t, `{"count":1}`, body)

		rec := s.Records()[0]
		assert.Equal(t, "Ada", rec["first_name"])
		assert.Equal(t, "0", rec["consent"])
	})

	t.Run("overwrite erases with blanks", func(t *testing.T) {
		s, srv := newTestServer(t)
		status, _ := post(t, srv, form(
			"content", "record", "action", "import", "overwriteBehavior", "overwrite",
			"data", `[{"record_id":"1","first_name":""}]`,
		))
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "", s.Records()[0]["first_name"])
	})

	t.Run("ids", func(t *testing.T) {
		s, srv := newTestServer(t)
		_, body := post(t, srv, form(
			"content", "record", "action", "import", "returnContent", "ids",
			"data", `[{"record_id":"9","first_name":"Barbara","consent":1}]`,
		))
		assert.JSONEq(t, `["9"]`, body)
		require.Len(t, s.Records(), 4)
		assert.Equal(t, "1", s.Records()[3]["consent"])
	})

	t.Run("auto ids", func(t *testing.T) {
		_, srv := newTestServer(t)
		_, body := post(t, srv, form(
			"content", "record", "action", "import",
			"returnContent", "auto_ids", "forceAutoNumber", "true",
			"data", `[{"record_id":"tmp","first_name":"Barbara"}]`,
		))
		assert.JSONEq(t, `["4,tmp"]`, body)
	})

	t.Run("missing record id", func(t *testing.T) {
		s, srv := newTestServer(t)
		status, _ := post(t, srv, form(
			"content", "record", "action", "import",
			"data", `[{"first_name":"Nobody"}]`,
		))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Len(t, s.Records(), 3)
	})
}

func TestMetadataFilters(t *testing.T) {
	_, srv := newTestServer(t)

	_, body := post(t, srv, form("content", "metadata", "forms[0]", "baseline_survey"))
	var fields []map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "consent", fields[0]["field_name"])
}

func TestExportFieldNamesCheckbox(t *testing.T) {
	f := DefaultFixture()
	f.Metadata = append(f.Metadata, map[string]string{
		"field_name":                     "symptoms",
		"form_name":                      "baseline_survey",
		"field_type":                     "checkbox",
		"select_choices_or_calculations": "1, Cough | 2, Fever",
	})
	srv := httptest.NewServer(New(f, nil).Handler())
	defer srv.Close()

	_, body := post(t, srv, form("content", "exportFieldNames", "field", "symptoms"))
	var names []map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &names))
	require.Len(t, names, 2)
	assert.Equal(t, "symptoms___1", names[0]["export_field_name"])
	assert.Equal(t, "2", names[1]["choice_value"])
}

func TestSurveyLinkAndPDF(t *testing.T) {
	_, srv := newTestServer(t)

	status, body := post(t, srv, form("content", "surveyLink", "record", "1", "instrument", "baseline_survey"))
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(body, "https://redcap.mock/surveys/?s="))

	status, _ = post(t, srv, form("content", "surveyLink", "record", "99", "instrument", "baseline_survey"))
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = post(t, srv, form("content", "pdf", "record", "1"))
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(body, "%PDF-"))
}

func TestFailureInjection(t *testing.T) {
	s, srv := newTestServer(t)

	s.FailNext("version",
		Failure{Status: http.StatusServiceUnavailable, Body: "maintenance"},
		Failure{APIError: "something broke"},
	)

	status, body := post(t, srv, form("content", "version"))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "maintenance", body)

	status, body = post(t, srv, form("content", "version"))
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"error":"something broke"}`, body)

	status, body = post(t, srv, form("content", "version"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "14.5.10", body)
	assert.Equal(t, 3, s.Requests("version"))
}

func TestFailureDrop(t *testing.T) {
	s, srv := newTestServer(t)
	s.FailNext("", Failure{Drop: true})

	resp, err := http.PostForm(srv.URL+Path, form("content", "project"))
	if err == nil {
		resp.Body.Close()
	}
	assert.Error(t, err)
	assert.Equal(t, 1, s.Requests("project"))
}

func TestLastFormIgnoresQuery(t *testing.T) {
	s, srv := newTestServer(t)

	resp, err := http.PostForm(srv.URL+Path+"?content=user", form("content", "instrument"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 1, s.Requests("instrument"))
	assert.Equal(t, 0, s.Requests("user"))
	assert.Equal(t, []string{DefaultToken}, s.LastForm("instrument")["token"])
}

func TestLoadFixture(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/fixture.yaml", []byte(`
version: "15.2.0"
records:
  - record_id: "10"
    email: "x@example.org"
`), 0o644))

	f, err := LoadFixture(fs, "/fixture.yaml")
	require.NoError(t, err)
	assert.Equal(t, "15.2.0", f.Version)
	assert.Equal(t, DefaultToken, f.Token)
	require.Len(t, f.Records, 1)
	assert.Equal(t, "10", f.Records[0]["record_id"])

	_, err = LoadFixture(fs, "/missing.yaml")
	assert.Error(t, err)
}
