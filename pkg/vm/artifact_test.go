package vm_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/vmls/pkg/vm"
)

func TestArtifactPath(t *testing.T) {
	s := vm.NewArtifactStore("/var/lib/vmls")
	assert.Equal(t, "/var/lib/vmls/web-1_config.xml", s.Path("web-1"))
	assert.Equal(t, "/var/lib/vmls/.._etc_config.xml", s.Path("../etc"))

	assert.Equal(t, os.TempDir(), vm.NewArtifactStore("").Dir())
}

func TestArtifactWrite(t *testing.T) {
	ctx := context.Background()
	s := vm.NewArtifactStore(filepath.Join(t.TempDir(), "nested"))

	w, err := s.Write(ctx, "web-1", "<domain/>\n")
	require.NoError(t, err, "first write creates the directory")
	assert.False(t, w.Changed)
	assert.Empty(t, w.Diff)

	w, err = s.Write(ctx, "web-1", "<domain/>\n")
	require.NoError(t, err)
	assert.False(t, w.Changed)

	w, err = s.Write(ctx, "web-1", "<domain type='kvm'/>\n")
	require.NoError(t, err)
	assert.True(t, w.Changed)
	assert.Contains(t, w.Diff, "+<domain type='kvm'/>")

	got, err := os.ReadFile(w.Path)
	require.NoError(t, err)
	assert.Equal(t, "<domain type='kvm'/>\n", string(got))
}

func TestArtifactConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := vm.NewArtifactStore(t.TempDir())

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Write(ctx, "web-1", fmt.Sprintf("<domain id='%d'/>\n", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := os.ReadFile(s.Path("web-1"))
	require.NoError(t, err)
	assert.Regexp(t, `^<domain id='\d+'/>\n$`, string(got), "writes never interleave")
}
