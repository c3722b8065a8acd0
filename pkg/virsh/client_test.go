package virsh_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/vmls/pkg/execute"
	"github.com/walteh/vmls/pkg/virsh"
	"gitlab.com/tozd/go/errors"
)

func TestNames(t *testing.T) {
	ctx := context.Background()

	f := execute.NewFakeRunner().
		On("virsh list --all --name", "web-1\ndb-1\n\nweb-2\n\n").
		On("virsh list --state-running --name", "web-1\n")

	c := virsh.NewClient(f, "", "")

	all, err := c.Names(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"web-1", "db-1", "web-2"}, all)

	running, err := c.Names(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"web-1"}, running)
}

func TestNamesConnectURI(t *testing.T) {
	f := execute.NewFakeRunner().On("/usr/bin/virsh -c qemu:///system list --all --name", "a\n")
	c := virsh.NewClient(f, "/usr/bin/virsh", "qemu:///system")

	names, err := c.Names(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}

func TestNamesFailure(t *testing.T) {
	f := execute.NewFakeRunner().OnResult("virsh list --all --name", &execute.Result{
		Stderr:   "error: failed to connect to the hypervisor\n",
		ExitCode: 1,
	})

	_, err := virsh.NewClient(f, "", "").Names(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, virsh.ErrCommandFailed), "got %v", err)
}

func TestQueriesUseArgv(t *testing.T) {
	ctx := context.Background()
	f := execute.NewFakeRunner()
	c := virsh.NewClient(f, "", "")

	name := "vm; rm -rf /"
	for _, q := range []func(context.Context, string) (*execute.Result, error){
		c.DomIfList, c.DomIfAddr, c.DumpXML, c.DomBlkList, c.DomState,
	} {
		_, err := q(ctx, name)
		require.NoError(t, err)
	}
	_, err := c.NeighShow(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"virsh domiflist " + name,
		"virsh domifaddr " + name,
		"virsh dumpxml " + name,
		"virsh domblklist " + name,
		"virsh domstate " + name,
		"ip neigh show",
	}, f.Calls())
}

func TestSpawnFailure(t *testing.T) {
	f := execute.NewFakeRunner().OnError("virsh domstate x", errors.New("exec: \"virsh\": executable file not found"))

	_, err := virsh.NewClient(f, "", "").DomState(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, execute.ErrSpawn), "got %v", err)
}
