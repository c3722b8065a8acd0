package diff_test

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/vmls/pkg/diff"
)

const before = `<domain type='kvm'>
  <name>web-1</name>
  <memory unit='KiB'>1048576</memory>
  <vcpu placement='static'>1</vcpu>
</domain>
`

const after = `<domain type='kvm'>
  <name>web-1</name>
  <memory unit='KiB'>2097152</memory>
  <vcpu placement='static'>1</vcpu>
</domain>
`

func TestUnified(t *testing.T) {
	assert.Empty(t, diff.Unified(before, before, "a", "b"))

	got := diff.Unified(before, after, "web-1_config.xml (previous)", "web-1_config.xml")
	assert.Contains(t, got, "--- web-1_config.xml (previous)")
	assert.Contains(t, got, "+++ web-1_config.xml")
	assert.Contains(t, got, "-  <memory unit='KiB'>1048576</memory>")
	assert.Contains(t, got, "+  <memory unit='KiB'>2097152</memory>")
}

func TestParseAndPretty(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	d, err := diff.Parse(diff.Unified(before, after, "previous", "current"))
	require.NoError(t, err, "parsing unified diff")
	require.Len(t, d.FileDiff.Hunks, 1)

	out := d.Pretty()
	assert.Contains(t, out, "--- previous")
	assert.Contains(t, out, "+++ current")
	assert.Contains(t, out, "[was]")
	assert.Contains(t, out, "[now]")
	assert.True(t, strings.Contains(out, "2097152"), "new value is rendered")
}

func TestParseEmpty(t *testing.T) {
	_, err := diff.Parse("")
	require.Error(t, err)
}

func TestPrettyNil(t *testing.T) {
	var d *diff.Drift
	assert.Empty(t, d.Pretty())
}

func TestSummary(t *testing.T) {
	d, err := diff.Parse(diff.Unified(before, after, "previous", "current"))
	require.NoError(t, err)
	assert.Equal(t, "config drift: 1 changed, 0 added, 0 removed", d.Summary())

	var none *diff.Drift
	assert.Empty(t, none.Summary())
}

func TestPrettyShowsIndent(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	d, err := diff.Parse(diff.Unified("a\n\tb\n", "a\n  b\n", "previous", "current"))
	require.NoError(t, err)

	out := d.Pretty()
	assert.Contains(t, out, "→   b")
	assert.Contains(t, out, "∙∙b")
}
