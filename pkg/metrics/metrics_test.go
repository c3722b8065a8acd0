package metrics_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/vmls/pkg/execute"
	"github.com/walteh/vmls/pkg/inventory"
	"github.com/walteh/vmls/pkg/metrics"
	"github.com/walteh/vmls/pkg/virsh"
	"github.com/walteh/vmls/pkg/vm"
	"github.com/walteh/vmls/pkg/vm/vmtest"
	"gitlab.com/tozd/go/errors"
)

func built(t *testing.T) *inventory.Inventory {
	t.Helper()

	f := vmtest.Root(execute.NewFakeRunner())
	vmtest.Names(f, []string{"web-1", "db-1", "broken"}, nil)
	vmtest.Script(f, vmtest.Domain{
		Name: "web-1", Device: "vnet0", MAC: "52:54:00:00:00:01", IP: "10.0.0.1",
		Disks: []string{"/path/a.img", "/path/b.img"}, State: "running",
	})
	vmtest.Script(f, vmtest.Domain{Name: "db-1", State: "shut off"})
	f.OnError("virsh domiflist broken", errors.New("fork failed"))

	client := virsh.NewClient(f, "", "")
	inv := inventory.New(client, vm.NewBuilder(client, vm.NewArtifactStore(t.TempDir())), 1)
	_, err := inv.ListAll(context.Background())
	require.NoError(t, err)
	return inv
}

func TestRegistry(t *testing.T) {
	reg := metrics.Registry(built(t))

	n, err := testutil.GatherAndCount(reg, "vmls_domain_state")
	require.NoError(t, err)
	assert.Equal(t, 6, n, "three states per domain")

	n, err = testutil.GatherAndCount(reg, "vmls_inventory_domains", "vmls_inventory_build_failures")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmls.prom")
	require.NoError(t, metrics.WriteTextfile(path, built(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `vmls_domain_state{domain="web-1",state="up"} 1`)
	assert.Contains(t, text, `vmls_domain_state{domain="web-1",state="down"} 0`)
	assert.Contains(t, text, `vmls_domain_state{domain="db-1",state="down"} 1`)
	assert.Contains(t, text, `vmls_domain_ip_addresses{domain="web-1"} 1`)
	assert.Contains(t, text, `vmls_domain_ip_addresses{domain="db-1"} 0`)
	assert.Contains(t, text, `vmls_domain_disks{domain="web-1"} 2`)
	assert.Contains(t, text, `vmls_domain_disks{domain="db-1"} 0`)
	assert.Contains(t, text, "vmls_inventory_domains 2")
	assert.Contains(t, text, "vmls_inventory_build_failures 1")
}
