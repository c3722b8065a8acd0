package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"
	"gitlab.com/tozd/go/errors"
)

// Drift is a parsed unified diff between two snapshots of one configuration.
type Drift struct {
	FileDiff *diff.FileDiff
}

// Parse reads the output of Unified.
func Parse(unified string) (*Drift, error) {
	if strings.TrimSpace(unified) == "" {
		return nil, errors.New("empty diff")
	}

	fd, err := diff.ParseFileDiff([]byte(unified))
	if err != nil {
		return nil, errors.Errorf("parsing unified diff: %w", err)
	}

	return &Drift{FileDiff: fd}, nil
}

// Summary is a one-line count of changed lines, e.g. "config drift: 1 changed, 2 added, 0 removed".
func (d *Drift) Summary() string {
	if d == nil || d.FileDiff == nil {
		return ""
	}
	st := d.FileDiff.Stat()
	return fmt.Sprintf("config drift: %d changed, %d added, %d removed", st.Changed, st.Added, st.Deleted)
}

var (
	faint = color.New(color.Faint)
	red   = color.New(color.FgRed)
	green = color.New(color.FgGreen)
)

const contextIndent = "         "

func wasPrefix() string {
	return "[" + color.New(color.FgRed, color.Bold).Sprint("was") + "] " + faint.Sprint(" -")
}

func nowPrefix() string {
	return "[" + color.New(color.FgGreen, color.Bold).Sprint("now") + "] " + faint.Sprint(" +")
}

// Pretty renders the drift with colors. A single replaced line is shown as a was/now
// pair with the edited characters emphasized.
func (d *Drift) Pretty() string {
	if d == nil || d.FileDiff == nil {
		return ""
	}

	var out []string
	if d.FileDiff.OrigName != "" {
		out = append(out, faint.Sprint("---")+" "+red.Sprint(d.FileDiff.OrigName))
	}
	if d.FileDiff.NewName != "" {
		out = append(out, faint.Sprint("+++")+" "+green.Sprint(d.FileDiff.NewName))
	}

	for _, h := range d.FileDiff.Hunks {
		out = append(out, faint.Sprintf("@@ -%d,%d +%d,%d @@%s", h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines, h.Section))

		for _, c := range splitEdits(h.Body) {
			for _, line := range c.context {
				out = append(out, contextIndent+showIndent(line, faint))
			}

			if len(c.was) == 1 && len(c.now) == 1 {
				out = append(out,
					wasPrefix()+showIndent(emphasize(c.was[0], c.now[0], diffmatchpatch.DiffDelete), red),
					nowPrefix()+showIndent(emphasize(c.was[0], c.now[0], diffmatchpatch.DiffInsert), green),
				)
				continue
			}

			for _, line := range c.was {
				out = append(out, wasPrefix()+showIndent(line, red))
			}
			for _, line := range c.now {
				out = append(out, nowPrefix()+showIndent(line, green))
			}
		}

		out = append(out, "")
	}

	return "\n" + strings.Join(out, "\n")
}

// emphasize renders one side of a line edit: the text only that side has in bold, the
// shared text faint. op selects the side (DiffDelete for the old line, DiffInsert for the new).
func emphasize(was, now string, op diffmatchpatch.Operation) string {
	dmp := diffmatchpatch.New()
	edits := dmp.DiffCleanupSemantic(dmp.DiffMain(was, now, false))

	base := color.FgGreen
	if op == diffmatchpatch.DiffDelete {
		base = color.FgRed
	}
	strong := color.New(base, color.Bold)
	shared := color.New(base, color.Faint)

	var b strings.Builder
	for _, e := range edits {
		switch e.Type {
		case op:
			b.WriteString(strong.Sprint(e.Text))
		case diffmatchpatch.DiffEqual:
			b.WriteString(shared.Sprint(e.Text))
		}
	}
	return b.String()
}

// edit is a run of context lines followed by the lines removed and added after it.
type edit struct {
	context []string
	was     []string
	now     []string
}

func splitEdits(body []byte) []edit {
	var edits []edit
	var cur edit
	changing := false

	flush := func() {
		if len(cur.context)+len(cur.was)+len(cur.now) > 0 {
			edits = append(edits, cur)
		}
		cur = edit{}
	}

	for _, line := range strings.Split(string(body), "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case '-':
			changing = true
			cur.was = append(cur.was, line[1:])
		case '+':
			changing = true
			cur.now = append(cur.now, line[1:])
		default:
			if changing {
				flush()
				changing = false
			}
			cur.context = append(cur.context, line)
		}
	}
	flush()

	return edits
}
