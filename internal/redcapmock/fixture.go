package redcapmock

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Fixture is the project a Server pretends to host.
type Fixture struct {
	Version         string              `yaml:"version"`
	Token           string              `yaml:"token"`
	RecordIDField   string              `yaml:"record_id_field"`
	Project         map[string]any      `yaml:"project"`
	ProjectSettings map[string]any      `yaml:"project_settings"`
	Instruments     []map[string]string `yaml:"instruments"`
	Metadata        []map[string]string `yaml:"metadata"`
	Users           []map[string]any    `yaml:"users"`
	Repository      []map[string]any    `yaml:"repository"`
	Records         []map[string]string `yaml:"records"`
}

// DefaultToken is the token accepted by DefaultFixture.
const DefaultToken = "0123456789ABCDEF0123456789ABCDEF"

// DefaultFixture returns a small longitudinal-free project with two
// instruments and three records.
func DefaultFixture() *Fixture {
	return &Fixture{
		Version:       "14.5.10",
		Token:         DefaultToken,
		RecordIDField: "record_id",
		Project: map[string]any{
			"project_id":                          101,
			"project_title":                       "Mock Study",
			"creation_time":                       "2024-03-01 09:30:00",
			"production_time":                     "",
			"in_production":                       "0",
			"project_language":                    "English",
			"purpose":                             "1",
			"is_longitudinal":                     0,
			"has_repeating_instruments_or_events": 0,
			"surveys_enabled":                     1,
			"record_autonumbering_enabled":        1,
			"missing_data_codes":                  "",
			"project_irb_number":                  "IRB-0042",
		},
		ProjectSettings: map[string]any{
			"project_title":          "Mock Study",
			"custom_record_label":    "",
			"secondary_unique_field": "",
		},
		Instruments: []map[string]string{
			{"instrument_name": "demographics", "instrument_label": "Demographics"},
			{"instrument_name": "baseline_survey", "instrument_label": "Baseline Survey"},
		},
		Metadata: []map[string]string{
			{"field_name": "record_id", "form_name": "demographics", "field_type": "text", "field_label": "Record ID"},
			{"field_name": "first_name", "form_name": "demographics", "field_type": "text", "field_label": "First Name", "identifier": "y"},
			{"field_name": "email", "form_name": "demographics", "field_type": "text", "field_label": "Email", "text_validation_type_or_show_slider_number": "email"},
			{"field_name": "consent", "form_name": "baseline_survey", "field_type": "yesno", "field_label": "Consent given", "required_field": "y"},
		},
		Users: []map[string]any{
			{"username": "alice", "email": "alice@example.edu", "firstname": "Alice", "lastname": "Ng", "design": 1, "user_rights": 1, "data_export": 1, "api_export": 1, "api_import": 1},
			{"username": "bob", "email": "bob@example.edu", "firstname": "Bob", "lastname": "Diaz", "design": 0, "user_rights": 0, "data_export": 2, "api_export": 1, "api_import": 0},
		},
		Repository: []map[string]any{
			{"folder_id": 7, "name": "Protocols"},
			{"doc_id": 31, "name": "consent_v2.pdf"},
		},
		Records: []map[string]string{
			{"record_id": "1", "first_name": "Ada", "email": "ada@example.org", "consent": "1"},
			{"record_id": "2", "first_name": "Grace", "email": "grace@example.org", "consent": "0"},
			{"record_id": "3", "first_name": "Edsger", "email": "", "consent": ""},
		},
	}
}

// LoadFixture reads a YAML fixture from fs. Fields it leaves out keep the
// values of DefaultFixture.
func LoadFixture(fs afero.Fs, path string) (*Fixture, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("error reading fixture %q: %w", path, err)
	}

	f := DefaultFixture()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("error parsing fixture %q: %w", path, err)
	}
	if f.RecordIDField == "" {
		return nil, fmt.Errorf("fixture %q: record_id_field is required", path)
	}
	return f, nil
}
