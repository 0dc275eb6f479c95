// Package base holds what every redcap CLI command shares: the logger, the
// UI, the filesystem, and the flags that select a config file, a server and
// an output format.
package base

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/hashicorp-forge/redcap/internal/config"
	"github.com/hashicorp-forge/redcap/pkg/redcap"
)

// Command is embedded by every command.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui

	// Fs is where config, input and output files are read and written.
	Fs afero.Fs

	// LookupEnv reads the environment. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// NewClient overrides client construction (optional).
	NewClient func(*redcap.Config) (*redcap.Client, error)

	flagConfig string
	flagURL    string
	flagFormat string

	logCloser io.Closer
}

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// NewCommand returns a Command writing to ui and the OS filesystem.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{Log: log, UI: ui, Fs: afero.NewOsFs()}
}

// NewConfigFlagSet returns a flag set with only the -config flag.
func (c *Command) NewConfigFlagSet(name string) *FlagSet {
	f := NewFlagSet(flag.NewFlagSet(name, flag.ContinueOnError))
	f.StringVar(
		&c.flagConfig, "config", "",
		"Path to an HCL, JSON or TOML config file.",
	)
	return f
}

// NewClientFlagSet returns a flag set with the -config, -url and -format
// flags of commands that talk to a server.
func (c *Command) NewClientFlagSet(name string) *FlagSet {
	f := c.NewConfigFlagSet(name)
	f.StringVar(
		&c.flagURL, "url", "",
		fmt.Sprintf("[%s] REDCap API URL. Overrides the config file.", config.EnvURL),
	)
	f.StringVar(
		&c.flagFormat, "format", FormatJSON,
		"Output format: json or yaml.",
	)
	return f
}

// Config loads the config file named by -config (if any) and applies the
// environment and -url on top of it.
func (c *Command) Config() (*config.Config, error) {
	cfg := config.Default()
	if c.flagConfig != "" {
		var err error
		if cfg, err = config.Load(c.FS(), c.flagConfig); err != nil {
			return nil, err
		}
	}
	lookup := c.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg.ApplyEnv(lookup)
	if c.flagURL != "" {
		cfg.REDCap.URL = c.flagURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.LogFile != "" && c.logCloser == nil {
		c.Log, c.logCloser = cfg.NewLogger("redcap", nil)
	} else {
		c.logger().SetLevel(hclog.LevelFromString(cfg.LogLevel))
	}
	return cfg, nil
}

// Close releases the log file opened by Config, if any.
func (c *Command) Close() error {
	if c.logCloser == nil {
		return nil
	}
	err := c.logCloser.Close()
	c.logCloser = nil
	return err
}

// Client builds an API client from Config.
func (c *Command) Client() (*redcap.Client, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}
	clientCfg, err := cfg.ClientConfig(c.logger())
	if err != nil {
		return nil, err
	}
	if c.NewClient != nil {
		return c.NewClient(clientCfg)
	}
	return redcap.NewClient(clientCfg)
}

// Print writes v to the UI in the format chosen with -format.
func (c *Command) Print(v any) error {
	out, err := c.Marshal(v)
	if err != nil {
		return err
	}
	c.UI.Output(string(bytes.TrimRight(out, "\n")))
	return nil
}

// Marshal encodes v in the format chosen with -format.
func (c *Command) Marshal(v any) ([]byte, error) {
	switch c.flagFormat {
	case "", FormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case FormatYAML:
		return yaml.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported output format %q (supported: json, yaml)", c.flagFormat)
	}
}

// Fail reports err with HTTP-style status context and returns the exit code.
func (c *Command) Fail(action string, err error) int {
	c.logger().Debug("command failed", "action", action, "status", redcap.HTTPStatusFor(err))
	c.UI.Error(fmt.Sprintf("error %s: %v", action, err))
	return 1
}

// FS returns the filesystem commands read and write.
func (c *Command) FS() afero.Fs {
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return c.Fs
}

func (c *Command) logger() hclog.Logger {
	if c.Log == nil {
		c.Log = hclog.NewNullLogger()
	}
	return c.Log
}

// Connect parses args with f and builds a client. On failure it reports the
// error and returns a nil client with the exit code.
func (c *Command) Connect(f *FlagSet, args []string) (*redcap.Client, int) {
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return nil, 1
	}
	client, err := c.Client()
	if err != nil {
		return nil, c.Fail("configuring client", err)
	}
	return client, 0
}

// PrintResult prints v and returns the exit code.
func (c *Command) PrintResult(v any) int {
	if err := c.Print(v); err != nil {
		return c.Fail("printing result", err)
	}
	return 0
}
