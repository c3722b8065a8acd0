package vm_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/walteh/vmls/pkg/vm"
)

func TestParseNeighbors(t *testing.T) {
	text := `192.168.122.10 dev virbr0 lladdr 52:54:00:6b:3c:58 REACHABLE
192.168.122.11 dev virbr0  FAILED
fe80::5054:ff:fe6b:3c58 dev virbr0 lladdr 52:54:00:6b:3c:58 router STALE

10.0.0.1 dev eth0 lladdr aa:bb:cc:dd:ee:ff DELAY
`
	want := []vm.Neighbor{
		{IP: "192.168.122.10", MAC: "52:54:00:6b:3c:58"},
		{IP: "fe80::5054:ff:fe6b:3c58", MAC: "52:54:00:6b:3c:58"},
		{IP: "10.0.0.1", MAC: "aa:bb:cc:dd:ee:ff"},
	}
	if diff := cmp.Diff(want, vm.ParseNeighbors(text)); diff != "" {
		t.Errorf("ParseNeighbors() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsLinkLocal(t *testing.T) {
	assert.True(t, vm.IsLinkLocal("fe80::1"))
	assert.True(t, vm.IsLinkLocal("FE80::5054:ff:fe6b:3c58"))
	assert.True(t, vm.IsLinkLocal("fe80::1%virbr0"))
	assert.False(t, vm.IsLinkLocal("192.168.122.10"))
	assert.False(t, vm.IsLinkLocal("2001:db8::1"))
	assert.False(t, vm.IsLinkLocal("169.254.1.1"))
}
