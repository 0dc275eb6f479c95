package redcap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp-forge/redcap/pkg/redcap/adapter"
	"github.com/hashicorp-forge/redcap/pkg/redcap/params"
	"github.com/hashicorp-forge/redcap/pkg/redcap/types"
)

// ExportVersion returns the server's version string as reported, e.g.
// "14.5.10". It does not need an adapter.
func (c *Client) ExportVersion(ctx context.Context) (string, error) {
	return c.doText(ctx, adapter.OpVersion, params.BuildVersionParams())
}

// ExportProjectInfo returns the project's attributes.
func (c *Client) ExportProjectInfo(ctx context.Context) (*ProjectInfo, error) {
	_, p, err := c.prepare(ctx, adapter.OpProjectInfo, params.BuildProjectInfoParams())
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := c.doJSON(ctx, adapter.OpProjectInfo, p, &raw); err != nil {
		return nil, err
	}
	var info ProjectInfo
	if err := weakDecode(raw, &info); err != nil {
		return nil, decodeError(adapter.OpProjectInfo, "project info", err)
	}
	return &info, nil
}

// ExportProjectSettings returns the project's settings. Only releases whose
// feature set includes ProjectSettings support it.
func (c *Client) ExportProjectSettings(ctx context.Context) (map[string]any, error) {
	_, p, err := c.prepare(ctx, adapter.OpProjectSettings, params.BuildProjectSettingsParams())
	if err != nil {
		return nil, err
	}

	var settings map[string]any
	if err := c.doJSON(ctx, adapter.OpProjectSettings, p, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// ExportInstruments lists the project's instruments.
func (c *Client) ExportInstruments(ctx context.Context) ([]Instrument, error) {
	_, p, err := c.prepare(ctx, adapter.OpInstruments, params.BuildInstrumentParams())
	if err != nil {
		return nil, err
	}

	var instruments []Instrument
	if err := c.doJSON(ctx, adapter.OpInstruments, p, &instruments); err != nil {
		return nil, err
	}
	return instruments, nil
}

// ExportMetadata returns the data dictionary, optionally narrowed to some
// fields or forms.
func (c *Client) ExportMetadata(ctx context.Context, opts params.MetadataOptions) ([]Field, error) {
	_, p, err := c.prepare(ctx, adapter.OpMetadata, params.BuildMetadataParams(opts))
	if err != nil {
		return nil, err
	}

	var raw []any
	if err := c.doJSON(ctx, adapter.OpMetadata, p, &raw); err != nil {
		return nil, err
	}
	var fields []Field
	if err := weakDecode(raw, &fields); err != nil {
		return nil, decodeError(adapter.OpMetadata, "metadata", err)
	}
	return fields, nil
}

// ExportFieldNames returns the export column names of every field, or of
// field alone when it is set.
func (c *Client) ExportFieldNames(ctx context.Context, field types.FieldName) ([]ExportFieldName, error) {
	_, p, err := c.prepare(ctx, adapter.OpFieldNames, params.BuildFieldNamesParams(field))
	if err != nil {
		return nil, err
	}

	var raw []any
	if err := c.doJSON(ctx, adapter.OpFieldNames, p, &raw); err != nil {
		return nil, err
	}
	var names []ExportFieldName
	if err := weakDecode(raw, &names); err != nil {
		return nil, decodeError(adapter.OpFieldNames, "field names", err)
	}
	return names, nil
}

// ExportUsers lists the project's users.
func (c *Client) ExportUsers(ctx context.Context) ([]User, error) {
	_, p, err := c.prepare(ctx, adapter.OpUsers, params.BuildUserParams())
	if err != nil {
		return nil, err
	}

	var raw []any
	if err := c.doJSON(ctx, adapter.OpUsers, p, &raw); err != nil {
		return nil, err
	}
	var users []User
	if err := weakDecode(raw, &users); err != nil {
		return nil, decodeError(adapter.OpUsers, "users", err)
	}
	return users, nil
}

// ExportRecords exports records as JSON. opts.Format is ignored.
func (c *Client) ExportRecords(ctx context.Context, opts params.ExportOptions) ([]Record, error) {
	opts.Format = params.FormatJSON
	body, err := c.ExportRecordsRaw(ctx, opts)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, decodeError(adapter.OpExportRecords, "records", err)
	}
	return records, nil
}

// ExportRecordsRaw exports records in opts.Format and returns the body
// unparsed.
func (c *Client) ExportRecordsRaw(ctx context.Context, opts params.ExportOptions) ([]byte, error) {
	built, err := params.BuildExportParams(opts)
	if err != nil {
		return nil, err
	}
	a, p, err := c.prepare(ctx, adapter.OpExportRecords, built)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, adapter.OpExportRecords, a.TransformExportParams(p))
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// ImportRecords imports records. Existing values are only erased by blanks
// when opts.OverwriteBehavior is params.OverwriteAll.
//
// Imports are never retried after the server has answered, so a failure
// reported by the server cannot lead to a duplicate write.
func (c *Client) ImportRecords(ctx context.Context, records []Record, opts params.ImportOptions) (*ImportResult, error) {
	built, err := params.BuildImportParams(records, opts)
	if err != nil {
		return nil, err
	}
	a, p, err := c.prepare(ctx, adapter.OpImportRecords, built)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, adapter.OpImportRecords, a.TransformImportParams(p))
	if err != nil {
		return nil, err
	}
	return parseImportResult(resp.body)
}

func parseImportResult(body []byte) (*ImportResult, error) {
	trimmed := bytes.TrimSpace(body)
	result := &ImportResult{}
	if len(trimmed) == 0 {
		return result, nil
	}

	switch trimmed[0] {
	case '{':
		var raw map[string]any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, decodeError(adapter.OpImportRecords, "import result", err)
		}
		if err := weakDecode(raw, result); err != nil {
			return nil, decodeError(adapter.OpImportRecords, "import result", err)
		}
	case '[':
		var raw []any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, decodeError(adapter.OpImportRecords, "import result", err)
		}
		if err := weakDecode(raw, &result.IDs); err != nil {
			return nil, decodeError(adapter.OpImportRecords, "import result", err)
		}
		result.Count = len(result.IDs)
	default:
		// returnContent=count in some releases answers with a bare number.
		if err := weakDecode(string(trimmed), &result.Count); err != nil {
			return nil, decodeError(adapter.OpImportRecords, "import result",
				fmt.Errorf("unexpected body %q", trimmed))
		}
	}
	return result, nil
}

// ExportSurveyLink returns the survey URL of one instrument for one record.
func (c *Client) ExportSurveyLink(ctx context.Context, opts params.SurveyLinkOptions) (string, error) {
	built, err := params.BuildSurveyLinkParams(opts)
	if err != nil {
		return "", err
	}
	_, p, err := c.prepare(ctx, adapter.OpSurveyLink, built)
	if err != nil {
		return "", err
	}
	return c.doText(ctx, adapter.OpSurveyLink, p)
}

// ExportPDF returns a record's instruments rendered as a PDF document.
func (c *Client) ExportPDF(ctx context.Context, opts params.PDFOptions) ([]byte, error) {
	built, err := params.BuildPDFParams(opts)
	if err != nil {
		return nil, err
	}
	_, p, err := c.prepare(ctx, adapter.OpPDF, built)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, adapter.OpPDF, p)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("downloaded PDF", "content_type", resp.contentType, "bytes", len(resp.body))
	return resp.body, nil
}

// ExportFileRepository lists a folder of the file repository. A zero folder
// lists the top level.
func (c *Client) ExportFileRepository(ctx context.Context, folder types.PositiveInt) ([]RepositoryEntry, error) {
	_, p, err := c.prepare(ctx, adapter.OpFileRepository, params.BuildFileRepositoryParams(folder))
	if err != nil {
		return nil, err
	}

	var raw []any
	if err := c.doJSON(ctx, adapter.OpFileRepository, p, &raw); err != nil {
		return nil, err
	}
	var entries []RepositoryEntry
	if err := weakDecode(raw, &entries); err != nil {
		return nil, decodeError(adapter.OpFileRepository, "file repository", err)
	}
	return entries, nil
}

// DefaultEmailField is the field FindUserByEmail matches when none is given.
var DefaultEmailField = mustFieldName("email")

// FindUserByEmail returns the ID of the first record whose emailField
// equals email. A zero emailField means DefaultEmailField. It returns an
// error wrapping ErrNotFound when nothing matches.
func (c *Client) FindUserByEmail(ctx context.Context, email types.Email, emailField types.FieldName) (types.RecordID, error) {
	if email.IsZero() {
		return types.RecordID{}, &types.ValidationError{Field: "email", Reason: "is required"}
	}
	if emailField.IsZero() {
		emailField = DefaultEmailField
	}

	// EAV rows always carry the record ID under "record", whatever the
	// project's record ID field is called.
	rows, err := c.ExportRecords(ctx, params.ExportOptions{
		Type:        params.RecordTypeEAV,
		Fields:      []types.FieldName{emailField},
		FilterLogic: params.FilterEquals(emailField, email.String()),
	})
	if err != nil {
		return types.RecordID{}, err
	}

	for _, row := range rows {
		id, ok := row["record"].(string)
		if !ok || id == "" {
			continue
		}
		rid, err := types.NewRecordID(id)
		if err != nil {
			return types.RecordID{}, fmt.Errorf("server returned an invalid record ID: %w", err)
		}
		return rid, nil
	}
	return types.RecordID{}, fmt.Errorf("no record with %s %q: %w", emailField, email, ErrNotFound)
}

func mustFieldName(s string) types.FieldName {
	f, err := types.NewFieldName(s)
	if err != nil {
		panic(err)
	}
	return f
}
