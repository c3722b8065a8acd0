// Package inventory enumerates domains and keeps the records built for them.
package inventory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/vmls/pkg/vm"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

var ErrEnumerate = errors.New("enumerating domains")

// NameSource lists domain names. virsh.Client and virsh.RPCLister both qualify.
type NameSource interface {
	Names(ctx context.Context, running bool) ([]string, error)
}

// RecordBuilder builds one record.
type RecordBuilder interface {
	Build(ctx context.Context, name string) (*vm.Record, error)
}

// Failure is a domain whose record could not be built.
type Failure struct {
	Name string
	Err  error
}

// Inventory holds the records of the last enumeration. Every listing call rebuilds it.
type Inventory struct {
	names       NameSource
	builder     RecordBuilder
	concurrency int

	mu       sync.RWMutex
	records  *orderedmap.OrderedMap[string, *vm.Record]
	failures []Failure
}

// New creates an Inventory building up to concurrency records at once; values below 1 mean 1.
func New(names NameSource, builder RecordBuilder, concurrency int) *Inventory {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Inventory{
		names:       names,
		builder:     builder,
		concurrency: concurrency,
		records:     orderedmap.New[string, *vm.Record](),
	}
}

// ListAll enumerates every defined domain and rebuilds the records.
func (inv *Inventory) ListAll(ctx context.Context) ([]string, error) {
	return inv.list(ctx, false)
}

// ListRunning enumerates running domains and rebuilds the records.
func (inv *Inventory) ListRunning(ctx context.Context) ([]string, error) {
	return inv.list(ctx, true)
}

func (inv *Inventory) enumerate(ctx context.Context, running bool) ([]string, error) {
	names, err := inv.names.Names(ctx, running)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Errorf("%w: %s", ErrEnumerate, err)
	}
	return names, nil
}

type built struct {
	record *vm.Record
	err    error
}

func (inv *Inventory) list(ctx context.Context, running bool) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	names, err := inv.enumerate(ctx, running)
	if err != nil {
		return nil, err
	}

	results := make([]built, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inv.concurrency)
	for i, name := range names {
		g.Go(func() error {
			rec, err := inv.builder.Build(gctx, name)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			results[i] = built{record: rec, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := orderedmap.New[string, *vm.Record](orderedmap.WithCapacity[string, *vm.Record](len(names)))
	var failures []Failure
	for i, name := range names {
		if results[i].err != nil {
			logger.Warn().Err(results[i].err).Str("domain", name).Msg("Skipping domain")
			failures = append(failures, Failure{Name: name, Err: results[i].err})
			continue
		}
		records.Set(name, results[i].record)
	}

	inv.mu.Lock()
	inv.records = records
	inv.failures = failures
	inv.mu.Unlock()

	logger.Debug().Int("records", records.Len()).Int("failures", len(failures)).Msg("Inventory rebuilt")

	return names, nil
}

// Pattern turns a filter into the expression Find matches with. A filter starting with
// ^ or containing * is already a pattern; anything else matches as a substring.
func Pattern(filter string) string {
	if strings.HasPrefix(filter, "^") || strings.Contains(filter, "*") {
		return filter
	}
	return ".*" + filter + ".*"
}

// Find returns every defined domain whose name matches Pattern(filter), unanchored like
// `grep -E`. It does not build records.
func (inv *Inventory) Find(ctx context.Context, filter string) ([]string, error) {
	re, err := regexp.Compile(Pattern(filter))
	if err != nil {
		return nil, errors.Errorf("compiling filter %q: %w", filter, err)
	}

	names, err := inv.enumerate(ctx, false)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, name := range names {
		if re.MatchString(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Records returns the records of the last enumeration in enumeration order.
func (inv *Inventory) Records() []*vm.Record {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]*vm.Record, 0, inv.records.Len())
	for pair := inv.records.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

func (inv *Inventory) Count() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.records.Len()
}

func (inv *Inventory) Record(name string) (*vm.Record, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.records.Get(name)
}

// Failures returns the domains skipped during the last enumeration.
func (inv *Inventory) Failures() []Failure {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return append([]Failure(nil), inv.failures...)
}

func (inv *Inventory) Describe() string {
	return fmt.Sprintf("number of vms: %d", inv.Count())
}
