// Package mock holds the command that runs the fake REDCap server.
package mock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp-forge/redcap/internal/cmd/base"
	"github.com/hashicorp-forge/redcap/internal/redcapmock"
)

const shutdownTimeout = 5 * time.Second

type Command struct {
	*base.Command

	flagAddr    string
	flagFixture string
}

func (c *Command) Synopsis() string {
	return "Run a fake REDCap server"
}

func (c *Command) Help() string {
	return `Usage: redcap mock [options]

  Serves an in-memory REDCap project at /api/ for local development. The
  project is read from a YAML fixture, or a built-in one when -fixture is
  not set. Stops on interrupt.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := c.NewConfigFlagSet("mock")
	f.StringVar(&c.flagAddr, "addr", "", "Address to listen on. Defaults to the config's mock.addr.")
	f.StringVar(&c.flagFixture, "fixture", "", "YAML fixture describing the project.")
	return f
}

func (c *Command) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	defer c.Close()

	cfg, err := c.Config()
	if err != nil {
		return c.Fail("loading config", err)
	}
	addr := cfg.Mock.Addr
	if c.flagAddr != "" {
		addr = c.flagAddr
	}
	fixturePath := cfg.Mock.Fixture
	if c.flagFixture != "" {
		fixturePath = c.flagFixture
	}

	fixture := redcapmock.DefaultFixture()
	if fixturePath != "" {
		if fixture, err = redcapmock.LoadFixture(c.FS(), fixturePath); err != nil {
			return c.Fail("loading fixture", err)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return c.Fail("listening", err)
	}

	ctx, cancel := base.Context()
	defer cancel()

	c.UI.Info(fmt.Sprintf("REDCap %s mock listening on http://%s%s", fixture.Version, ln.Addr(), redcapmock.Path))
	if err := c.serve(ctx, ln, redcapmock.New(fixture, c.Log)); err != nil {
		return c.Fail("serving", err)
	}
	return 0
}

// serve runs srv on ln until ctx is done, then shuts it down gracefully.
func (c *Command) serve(ctx context.Context, ln net.Listener, srv *redcapmock.Server) error {
	httpServer := &http.Server{
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	c.UI.Info("Shutting down mock server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
