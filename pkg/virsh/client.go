// Package virsh builds the argv for every hypervisor query and hands back the raw results.
// Parsing lives with the callers so format drift stays out of the transport.
package virsh

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/vmls/pkg/execute"
	"github.com/walteh/vmls/pkg/table"
	"gitlab.com/tozd/go/errors"
)

const DefaultBinary = "virsh"

// ErrCommandFailed is returned when a listing command exits nonzero.
var ErrCommandFailed = errors.New("virsh command failed")

// Client issues virsh and neighbor-table queries through a Runner.
type Client struct {
	runner  execute.Runner
	binary  string
	connect string
}

// NewClient creates a Client. An empty binary means "virsh"; an empty connect URI
// leaves the choice to virsh itself (LIBVIRT_DEFAULT_URI or its builtin default).
func NewClient(runner execute.Runner, binary, connect string) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Client{runner: runner, binary: binary, connect: connect}
}

// Runner returns the runner every query goes through.
func (c *Client) Runner() execute.Runner {
	return c.runner
}

func (c *Client) command(args ...string) execute.Command {
	if c.connect != "" {
		args = append([]string{"-c", c.connect}, args...)
	}
	return execute.Cmd(c.binary, args...)
}

func (c *Client) run(ctx context.Context, args ...string) (*execute.Result, error) {
	cmd := c.command(args...)
	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		return nil, errors.Errorf("running %s: %w", cmd, err)
	}
	return res, nil
}

// Names enumerates domain names, only running ones when running is set.
func (c *Client) Names(ctx context.Context, running bool) ([]string, error) {
	filter := "--all"
	if running {
		filter = "--state-running"
	}

	res, err := c.run(ctx, "list", filter, "--name")
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, errors.Errorf("%w: %s exited %d: %s", ErrCommandFailed, res.Command, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	names := table.Lines(res.Stdout)
	zerolog.Ctx(ctx).Debug().Bool("running", running).Int("count", len(names)).Msg("Enumerated domains")
	return names, nil
}

// DomIfList runs `virsh domiflist <name>`.
func (c *Client) DomIfList(ctx context.Context, name string) (*execute.Result, error) {
	return c.run(ctx, "domiflist", name)
}

// DomIfAddr runs `virsh domifaddr <name>`.
func (c *Client) DomIfAddr(ctx context.Context, name string) (*execute.Result, error) {
	return c.run(ctx, "domifaddr", name)
}

// DumpXML runs `virsh dumpxml <name>`.
func (c *Client) DumpXML(ctx context.Context, name string) (*execute.Result, error) {
	return c.run(ctx, "dumpxml", name)
}

// DomBlkList runs `virsh domblklist <name>`.
func (c *Client) DomBlkList(ctx context.Context, name string) (*execute.Result, error) {
	return c.run(ctx, "domblklist", name)
}

// DomState runs `virsh domstate <name>`.
func (c *Client) DomState(ctx context.Context, name string) (*execute.Result, error) {
	return c.run(ctx, "domstate", name)
}

// NeighShow dumps the kernel neighbor table with `ip neigh show`.
func (c *Client) NeighShow(ctx context.Context) (*execute.Result, error) {
	cmd := execute.Cmd("ip", "neigh", "show")
	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		return nil, errors.Errorf("running %s: %w", cmd, err)
	}
	return res, nil
}
