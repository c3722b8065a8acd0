package execute

import (
	"context"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// FakeRunner returns scripted results keyed by the space-joined argv.
// Unscripted commands exit 127. Safe for concurrent use.
type FakeRunner struct {
	mu      sync.Mutex
	results map[string]*Result
	errs    map[string]error
	calls   []string
}

var _ Runner = (*FakeRunner)(nil)

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		results: make(map[string]*Result),
		errs:    make(map[string]error),
	}
}

func key(argv []string) string {
	return strings.Join(argv, " ")
}

// On scripts stdout for a command that exits 0.
func (f *FakeRunner) On(argv string, stdout string) *FakeRunner {
	return f.OnResult(argv, &Result{Stdout: stdout})
}

// OnResult scripts a full result.
func (f *FakeRunner) OnResult(argv string, res *Result) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[argv] = res
	return f
}

// OnError makes a command fail to spawn.
func (f *FakeRunner) OnError(argv string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[argv] = err
	return f
}

// Calls returns every argv run so far, in order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called counts how many times argv ran.
func (f *FakeRunner) Called(argv string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == argv {
			n++
		}
	}
	return n
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := key(cmd.Argv())

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, k)

	if err, ok := f.errs[k]; ok {
		return nil, errors.Errorf("%w %s: %s", ErrSpawn, cmd.Name, err)
	}

	res, ok := f.results[k]
	if !ok {
		return &Result{Command: k, Stderr: cmd.Name + ": command not found\n", ExitCode: 127}, nil
	}

	out := *res
	out.Command = k
	return &out, nil
}
