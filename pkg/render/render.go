// Package render prints inventory records as text, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/walteh/vmls/pkg/diff"
	"github.com/walteh/vmls/pkg/vm"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown output format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", errors.Errorf("%w %q (want text, json or yaml)", ErrUnknownFormat, s)
	}
}

// Options only affect the text format.
type Options struct {
	// Full prints every field instead of the one-line summary.
	Full bool
	// Drift appends the configuration diff of records whose artifact changed.
	Drift bool
}

func state(s vm.State) string {
	switch s {
	case vm.StateUp:
		return color.New(color.FgGreen).Sprint(s)
	case vm.StateDown:
		return color.New(color.FgRed).Sprint(s)
	default:
		return s.String()
	}
}

// Summary is the one-line form: > NAME : VNET <> IPS STATE
func Summary(r *vm.Record) string {
	return fmt.Sprintf("> %s : %s <> %s %s", r.Name(), r.NetworkDevice(), strings.Join(r.IPAddresses(), ", "), state(r.State()))
}

// Full lists every field of r, one per line.
func Full(r *vm.Record) string {
	return fmt.Sprintf("> %s :\n- vnet: %s\n- ip: %s\n- disk: %s\n- mac: %s\n- config_xml_file: %s\n- state: %s",
		r.Name(),
		r.NetworkDevice(),
		strings.Join(r.IPAddresses(), ", "),
		r.DiskList(),
		strings.Join(r.MACAddresses(), ", "),
		r.ConfigArtifactPath(),
		state(r.State()),
	)
}

// Records writes records to w in the given format.
func Records(w io.Writer, format Format, records []*vm.Record, opts Options) error {
	switch format {
	case FormatJSON:
		views := make([]vm.View, 0, len(records))
		for _, r := range records {
			views = append(views, r.View())
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(views); err != nil {
			return errors.Errorf("encoding json: %w", err)
		}
		return nil
	case FormatYAML:
		views := make([]vm.View, 0, len(records))
		for _, r := range records {
			views = append(views, r.View())
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return errors.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		return text(w, records, opts)
	default:
		return errors.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

func text(w io.Writer, records []*vm.Record, opts Options) error {
	for _, r := range records {
		var err error
		if opts.Full {
			_, err = fmt.Fprintf(w, "%s\n\n", Full(r))
		} else {
			_, err = fmt.Fprintln(w, Summary(r))
		}
		if err != nil {
			return errors.Errorf("writing record %s: %w", r.Name(), err)
		}

		if opts.Drift && r.ConfigChanged() {
			d, err := diff.Parse(r.ConfigDiff())
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "%s%s\n", d.Summary(), d.Pretty()); err != nil {
				return errors.Errorf("writing drift of %s: %w", r.Name(), err)
			}
		}
	}
	return nil
}

// Names writes one name per line.
func Names(w io.Writer, format Format, names []string) error {
	if names == nil {
		names = []string{}
	}
	switch format {
	case FormatJSON:
		return json.NewEncoder(w).Encode(names)
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(names)
	default:
		for _, n := range names {
			if _, err := fmt.Fprintln(w, n); err != nil {
				return errors.Errorf("writing name: %w", err)
			}
		}
		return nil
	}
}
