package execute

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig describes a remote hypervisor host.
type SSHConfig struct {
	Host         string
	Port         int
	User         string
	IdentityFile string
	// KnownHosts is a known_hosts file. Empty disables host key checking.
	KnownHosts string
	Timeout    time.Duration
}

// SSHRunner runs commands on a remote host. The remote side always goes through the
// login shell, so every argument is single-quoted.
type SSHRunner struct {
	client *ssh.Client
	prefix []string
}

var _ Runner = (*SSHRunner)(nil)

// DialSSH connects to the configured host.
func DialSSH(ctx context.Context, cfg SSHConfig, prefix ...string) (*SSHRunner, error) {
	logger := zerolog.Ctx(ctx)

	if cfg.Host == "" {
		return nil, errors.New("ssh host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	auth, err := sshAuth(cfg.IdentityFile)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		hostKeyCallback, err = knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, errors.Errorf("loading known hosts %s: %w", cfg.KnownHosts, err)
		}
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.Timeout,
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	logger.Debug().Str("address", addr).Str("user", cfg.User).Msg("Connecting to hypervisor host")

	client, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, errors.Errorf("connecting to %s: %w", addr, err)
	}

	return &SSHRunner{client: client, prefix: prefix}, nil
}

func sshAuth(identityFile string) ([]ssh.AuthMethod, error) {
	if identityFile == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Errorf("getting user home directory: %w", err)
		}
		identityFile = homeDir + "/.ssh/id_ed25519"
		if _, err := os.Stat(identityFile); err != nil {
			identityFile = homeDir + "/.ssh/id_rsa"
		}
	}

	key, err := os.ReadFile(identityFile)
	if err != nil {
		return nil, errors.Errorf("reading identity file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Errorf("parsing identity file %s: %w", identityFile, err)
	}

	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// Close closes the underlying connection.
func (r *SSHRunner) Close() error {
	return r.client.Close()
}

// Run implements Runner.
func (r *SSHRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if len(r.prefix) > 0 {
		cmd = (&LocalRunner{Prefix: r.prefix}).apply(cmd)
	}

	session, err := r.client.NewSession()
	if err != nil {
		return nil, errors.Errorf("%w %s: creating SSH session: %s", ErrSpawn, cmd.Name, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	line := RemoteCommandLine(cmd)
	zerolog.Ctx(ctx).Trace().Str("command", line).Msg("Running remote command")

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(line)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, errors.Errorf("running %s: %w", cmd.Name, ctx.Err())
	case err = <-done:
	}

	res := &Result{
		Command:  cmd.String(),
		Stdout:   toValidUTF8(stdout.Bytes()),
		Stderr:   toValidUTF8(stderr.Bytes()),
		Duration: time.Since(start),
	}

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		if exitErr.Signal() != "" {
			res.ExitCode = NoExitCode
		} else {
			res.ExitCode = exitErr.ExitStatus()
		}
	case errors.As(err, &missingErr):
		res.ExitCode = NoExitCode
	default:
		return nil, errors.Errorf("%w %s: %s", ErrSpawn, cmd.Name, err)
	}

	return res, nil
}

// RemoteCommandLine quotes an argv for a POSIX shell.
func RemoteCommandLine(cmd Command) string {
	parts := make([]string, 0, len(cmd.Args)+1)
	for _, a := range cmd.Argv() {
		parts = append(parts, "'"+strings.ReplaceAll(a, "'", `'\''`)+"'")
	}
	return strings.Join(parts, " ")
}
