package table_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/walteh/vmls/pkg/table"
)

const domiflist = ` Interface   Type      Source    Model    MAC
------------------------------------------------------------
 vnet0       network   default   virtio   52:54:00:6b:3c:58
 vnet1       bridge    br0       virtio   52:54:00:aa:bb:cc
`

func TestColumn(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		header string
		want   string
	}{
		{name: "first data row", text: domiflist, header: "Interface", want: "vnet0"},
		{name: "other column", text: domiflist, header: "Source", want: "default"},
		{name: "header absent", text: domiflist, header: "Bridge", want: table.Unknown},
		{name: "case sensitive", text: domiflist, header: "interface", want: table.Unknown},
		{name: "no data rows", text: " Interface   Type\n-----------\n", header: "Interface", want: table.Unknown},
		{name: "empty", text: "", header: "Interface", want: table.Unknown},
		{
			name:   "short rows are skipped",
			text:   " Interface   Type   MAC\n---\n vnet0\n vnet1 network 52:54:00:00:00:01\n",
			header: "MAC",
			want:   "52:54:00:00:00:01",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Column(tt.text, tt.header))
		})
	}
}

func TestRows(t *testing.T) {
	isMAC := func(s string) bool { return strings.Contains(s, ":") }

	got := table.Rows(domiflist, 4, isMAC)
	want := []string{"52:54:00:6b:3c:58", "52:54:00:aa:bb:cc"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, table.Rows(domiflist, 9, isMAC))
	assert.Empty(t, table.Rows("", 4, isMAC))
}

func TestDataRows(t *testing.T) {
	text := ` Target   Source
------------------------------------------------
 vda      /path/a.img

 vdb      /path/b.img
`
	got := table.DataRows(text, 2)
	want := [][]string{{"vda", "/path/a.img"}, {"vdb", "/path/b.img"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DataRows() mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, table.DataRows("one line", 2))
}

func TestLines(t *testing.T) {
	got := table.Lines("web-1\n\n  db-1  \r\nweb-2\n\n")
	assert.Equal(t, []string{"web-1", "db-1", "web-2"}, got)
	assert.Empty(t, table.Lines("\n\n"))
}
