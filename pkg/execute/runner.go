package execute

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrSpawn is returned when a command could not be started at all.
// A command that starts and exits nonzero is not an error.
var ErrSpawn = errors.New("spawning command")

// NoExitCode is reported when the process ended without an exit status (killed by a signal).
const NoExitCode = -1

// Command is an argv. It is never passed through a shell.
type Command struct {
	Name string
	Args []string
}

// Cmd builds a Command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Argv returns the full argument vector.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command for logs, quoting each argument.
func (c Command) String() string {
	out := ""
	for _, s := range c.Argv() {
		out = safelyAppendToCmd(out, s)
	}
	return strings.TrimSpace(out)
}

func safelyAppendToCmd(cmd string, s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>*?()[]{}") {
		return fmt.Sprintf("%s%s ", cmd, s)
	}
	return fmt.Sprintf("%s%q ", cmd, s)
}

// Result captures one execution.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Success reports a zero exit status.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// LocalRunner runs commands on this host.
type LocalRunner struct {
	// Prefix is prepended to every argv, e.g. []string{"sudo", "-n"}.
	Prefix []string
	// Env is appended to the inherited environment.
	Env map[string]string
	// Timeout bounds a single invocation. Zero means no bound.
	Timeout time.Duration
}

var _ Runner = (*LocalRunner)(nil)

// NewLocalRunner creates a LocalRunner with the given argv prefix.
func NewLocalRunner(prefix ...string) *LocalRunner {
	return &LocalRunner{Prefix: prefix}
}

func (r *LocalRunner) apply(cmd Command) Command {
	if len(r.Prefix) == 0 {
		return cmd
	}
	return Command{
		Name: r.Prefix[0],
		Args: append(append(append([]string{}, r.Prefix[1:]...), cmd.Name), cmd.Args...),
	}
}

// Run implements Runner.
func (r *LocalRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	cmd = r.apply(cmd)

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	logger := zerolog.Ctx(ctx)
	logger.Trace().Str("command", cmd.String()).Msg("Running command")

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.WaitDelay = time.Second
	if len(r.Env) > 0 {
		c.Env = os.Environ()
		for _, k := range slices.Sorted(maps.Keys(r.Env)) {
			c.Env = append(c.Env, fmt.Sprintf("%s=%s", k, r.Env[k]))
		}
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := &Result{
		Command:  cmd.String(),
		Stdout:   toValidUTF8(stdout.Bytes()),
		Stderr:   toValidUTF8(stderr.Bytes()),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Errorf("running %s: %w", cmd.Name, ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Errorf("%w %s: %s", ErrSpawn, cmd.Name, err)
		}
	}

	// ExitCode is -1 for signaled processes.
	res.ExitCode = c.ProcessState.ExitCode()

	logger.Trace().
		Str("command", res.Command).
		Int("exitCode", res.ExitCode).
		Dur("duration", res.Duration).
		Msg("Command finished")

	return res, nil
}

func toValidUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
