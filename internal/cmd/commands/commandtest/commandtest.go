// Package commandtest runs CLI commands against a mock REDCap server.
package commandtest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/redcap/internal/cmd/base"
	"github.com/hashicorp-forge/redcap/internal/config"
	"github.com/hashicorp-forge/redcap/internal/redcapmock"
	"github.com/hashicorp-forge/redcap/pkg/redcap"
)

// Env is a command wired to a running mock server.
type Env struct {
	Mock    *redcapmock.Server
	Command *base.Command
	UI      *cli.MockUi
	Fs      afero.Fs

	// Args select the mock server; prepend them to a command's own flags.
	Args []string
}

// New starts a mock server hosting the default fixture and returns a command
// configured to talk to it with the fixture's token.
func New(t *testing.T) *Env {
	t.Helper()

	mock := redcapmock.New(nil, nil)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	ui := cli.NewMockUi()
	fs := afero.NewMemMapFs()
	c := base.NewCommand(nil, ui)
	c.Fs = fs
	c.LookupEnv = func(k string) (string, bool) {
		if k == config.EnvToken {
			return redcapmock.DefaultToken, true
		}
		return "", false
	}
	c.NewClient = func(cfg *redcap.Config) (*redcap.Client, error) {
		cfg.RetryDelay = time.Millisecond
		return redcap.NewClient(cfg)
	}

	return &Env{
		Mock:    mock,
		Command: c,
		UI:      ui,
		Fs:      fs,
		Args:    []string{"-url", srv.URL + redcapmock.Path},
	}
}

// With returns e.Args followed by args.
func (e *Env) With(args ...string) []string {
	return append(append([]string{}, e.Args...), args...)
}

// Token makes the command present token instead of the fixture's.
func (e *Env) Token(token string) {
	e.Command.LookupEnv = func(k string) (string, bool) {
		if k == config.EnvToken {
			return token, true
		}
		return "", false
	}
}
