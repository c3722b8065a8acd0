// Package vm builds one inventory record per domain out of several virsh queries.
package vm

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/vmls/pkg/execute"
	"github.com/walteh/vmls/pkg/table"
	"github.com/walteh/vmls/pkg/virsh"
	"gitlab.com/tozd/go/errors"
)

var ErrInsufficientPrivilege = errors.New("insufficient privilege")

// Builder turns a domain name into a Record.
type Builder struct {
	client           *virsh.Client
	artifacts        *ArtifactStore
	neighbors        NeighborSource
	states           *StateTable
	requirePrivilege bool
}

type BuilderOption func(*Builder)

// WithNeighborSource replaces the `ip neigh show` lookup.
func WithNeighborSource(n NeighborSource) BuilderOption {
	return func(b *Builder) { b.neighbors = n }
}

func WithStateTable(t *StateTable) BuilderOption {
	return func(b *Builder) { b.states = t }
}

// WithPrivilegeCheck toggles the superuser probe that runs before every build.
func WithPrivilegeCheck(required bool) BuilderOption {
	return func(b *Builder) { b.requirePrivilege = required }
}

func NewBuilder(client *virsh.Client, artifacts *ArtifactStore, opts ...BuilderOption) *Builder {
	b := &Builder{
		client:           client,
		artifacts:        artifacts,
		neighbors:        NewIPNeighbors(client),
		states:           DefaultStateTable(),
		requirePrivilege: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func isMAC(s string) bool {
	return strings.Contains(s, ":")
}

// Build queries everything about one domain. Failing queries degrade to sentinels;
// only a failed privilege probe, a virsh command that cannot be spawned, cancellation or a
// failed artifact write return an error. An unreadable neighbor table only skips that stage.
func (b *Builder) Build(ctx context.Context, name string) (*Record, error) {
	logger := zerolog.Ctx(ctx).With().Str("domain", name).Logger()
	ctx = logger.WithContext(ctx)

	if b.requirePrivilege && !execute.PrivilegeSufficient(ctx, b.client.Runner()) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.Errorf("%w: inspecting %s requires uid %d", ErrInsufficientPrivilege, name, execute.SuperuserUID)
	}

	rec := &Record{name: name}

	res, err := b.client.DomIfList(ctx, name)
	if err != nil {
		return nil, err
	}
	warnIfFailed(ctx, name, "domiflist", res)
	rec.networkDevice = table.Column(res.Stdout, "Interface")
	rec.macAddresses = table.Rows(res.Stdout, 4, isMAC)

	// dumpxml feeds both the address fallback and the artifact; fetch it once.
	var xmlDoc *string
	dumpFailed := false
	doc := func() (string, error) {
		if xmlDoc != nil {
			return *xmlDoc, nil
		}
		res, err := b.client.DumpXML(ctx, name)
		if err != nil {
			return "", err
		}
		warnIfFailed(ctx, name, "dumpxml", res)
		dumpFailed = !res.Success()
		xmlDoc = &res.Stdout
		return res.Stdout, nil
	}

	rec.ipAddresses, err = b.resolveIPs(ctx, name, rec.macAddresses, doc)
	if err != nil {
		return nil, err
	}

	res, err = b.client.DomBlkList(ctx, name)
	if err != nil {
		return nil, err
	}
	warnIfFailed(ctx, name, "domblklist", res)
	for _, row := range table.DataRows(res.Stdout, 2) {
		if len(row) >= 2 {
			rec.disks = append(rec.disks, row[1])
		}
	}
	if len(rec.disks) == 0 {
		rec.disks = []string{NoDiskFound}
	}

	text, err := doc()
	if err != nil {
		return nil, err
	}
	written, err := b.artifacts.Write(ctx, name, text)
	if err != nil {
		return nil, err
	}
	rec.configArtifactPath = written.Path
	// a failed dump is stored as reported but is not a configuration change
	if !dumpFailed {
		rec.configChanged = written.Changed
		rec.configDiff = written.Diff
	}

	res, err = b.client.DomState(ctx, name)
	if err != nil {
		return nil, err
	}
	warnIfFailed(ctx, name, "domstate", res)
	rec.rawState = strings.TrimSpace(res.Stdout)
	rec.state = b.states.resolve(ctx, name, rec.rawState)

	logger.Debug().
		Str("device", rec.networkDevice).
		Strs("ips", rec.ipAddresses).
		Stringer("state", rec.state).
		Msg("Built record")

	return rec, nil
}

func warnIfFailed(ctx context.Context, name, step string, res *execute.Result) {
	stderr := strings.TrimSpace(res.Stderr)
	if res.Success() && stderr == "" {
		return
	}
	zerolog.Ctx(ctx).Warn().
		Str("domain", name).
		Str("step", step).
		Int("exitCode", res.ExitCode).
		Str("stderr", stderr).
		Msg("Query reported an error")
}
