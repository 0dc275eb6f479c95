package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/redcap/internal/cmd/commands/commandtest"
	"github.com/hashicorp-forge/redcap/pkg/redcap/adapter"
)

func TestRemoteVersionCommand(t *testing.T) {
	env := commandtest.New(t)
	c := &RemoteVersionCommand{Command: env.Command}

	require.Equal(t, 0, c.Run(env.Args), env.UI.ErrorWriter.String())
	assert.Equal(t, "14.5.10\n", env.UI.OutputWriter.String())
}

func TestRemoteVersionCommand_Unsupported(t *testing.T) {
	env := commandtest.New(t)
	env.Mock.SetVersion("9.0.0")
	c := &RemoteVersionCommand{Command: env.Command}

	// The raw version is printed even when no adapter supports it.
	require.Equal(t, 0, c.Run(env.Args), env.UI.ErrorWriter.String())
	assert.Equal(t, "9.0.0\n", env.UI.OutputWriter.String())
}

func TestCheckCommand(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		token      string
		wantCode   int
		wantStatus string
	}{
		{name: "healthy", wantCode: 0, wantStatus: "ok"},
		{name: "bad token", token: "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF", wantCode: 2, wantStatus: "invalid_token"},
		{name: "unsupported", version: "9.0.0", wantCode: 2, wantStatus: "unsupported_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := commandtest.New(t)
			if tt.version != "" {
				env.Mock.SetVersion(tt.version)
			}
			if tt.token != "" {
				env.Token(tt.token)
			}
			c := &CheckCommand{Command: env.Command}

			assert.Equal(t, tt.wantCode, c.Run(env.Args))

			var report map[string]any
			require.NoError(t, json.Unmarshal([]byte(env.UI.OutputWriter.String()), &report))
			assert.Equal(t, tt.wantStatus, report["status"])
		})
	}
}

func TestFeaturesCommand(t *testing.T) {
	env := commandtest.New(t)
	env.Mock.SetVersion("15.2.0")
	c := &FeaturesCommand{Command: env.Command}

	require.Equal(t, 0, c.Run(env.With("-format", "yaml")), env.UI.ErrorWriter.String())
	out := env.UI.OutputWriter.String()
	assert.Contains(t, out, "version: 15.2.0")
	assert.Contains(t, out, "adapter: "+adapter.NameV15)
	assert.Contains(t, out, "file_repository: true")
}

func TestFeatureMap(t *testing.T) {
	got := FeatureMap(adapter.FeatureSet{RepeatingInstruments: true, FileInfo: true})
	assert.Equal(t, map[string]bool{
		"repeating_instruments": true,
		"data_access_groups":    false,
		"file_repository":       false,
		"project_settings":      false,
		"file_info":             true,
	}, got)
}
