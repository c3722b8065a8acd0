// Package config loads vmls settings from a YAML file and the environment.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/walteh/vmls/pkg/vm"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

var ErrConfig = errors.New("configuration error")

const (
	SourceVirsh = "virsh"
	SourceRPC   = "rpc"

	NeighborsIP      = "ip"
	NeighborsNetlink = "netlink"

	EnvConnect     = "VMLS_CONNECT"
	EnvArtifactDir = "VMLS_ARTIFACT_DIR"
	EnvSSHHost     = "VMLS_SSH_HOST"
)

// Config holds everything read from config.yaml, after environment overrides.
type Config struct {
	Virsh     Virsh     `yaml:"virsh"`
	SSH       SSH       `yaml:"ssh"`
	Inventory Inventory `yaml:"inventory"`
	States    States    `yaml:"states"`
}

type Virsh struct {
	Binary string `yaml:"binary"`
	// Connect is passed as `virsh -c`.
	Connect string `yaml:"connect"`
	// Prefix is prepended to every command, e.g. [sudo, -n].
	Prefix  []string      `yaml:"prefix"`
	Timeout time.Duration `yaml:"timeout"`
}

// SSH points vmls at a remote hypervisor. An empty Host means local.
type SSH struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	IdentityFile string `yaml:"identity_file"`
	KnownHosts   string `yaml:"known_hosts"`
}

type Inventory struct {
	Concurrency int `yaml:"concurrency"`
	// ArtifactDir defaults to the OS temp dir.
	ArtifactDir      string `yaml:"artifact_dir"`
	RequirePrivilege *bool  `yaml:"require_privilege"`
	// NeighborSource is "ip" (ip neigh show) or "netlink".
	NeighborSource string `yaml:"neighbor_source"`
	// Source is "virsh" or "rpc" (libvirt socket, local only).
	Source        string `yaml:"source"`
	LibvirtSocket string `yaml:"libvirt_socket"`
}

// States extends the builtin state table.
type States struct {
	Up      []string `yaml:"up"`
	Down    []string `yaml:"down"`
	Unknown []string `yaml:"unknown"`
}

func Default() *Config {
	return &Config{
		Virsh: Virsh{Binary: "virsh"},
		SSH:   SSH{Port: 22},
		Inventory: Inventory{
			Concurrency:    1,
			NeighborSource: NeighborsIP,
			Source:         SourceVirsh,
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/vmls/config.yaml, or the platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Errorf("getting user config directory: %w", err)
	}
	return filepath.Join(dir, "vmls", "config.yaml"), nil
}

// Load reads path over the defaults. An empty path reads DefaultPath when it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, errors.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv applies the VMLS_* overrides.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvConnect); v != "" {
		c.Virsh.Connect = v
	}
	if v := getenv(EnvArtifactDir); v != "" {
		c.Inventory.ArtifactDir = v
	}
	if v := getenv(EnvSSHHost); v != "" {
		if err := c.SSH.SetTarget(v); err != nil {
			return err
		}
	}
	return nil
}

// SetTarget parses [user@]host[:port].
func (s *SSH) SetTarget(target string) error {
	user, hostport, ok := strings.Cut(target, "@")
	if !ok {
		user, hostport = "", target
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// no port
		host, portStr = strings.Trim(hostport, "[]"), ""
	}
	if host == "" {
		return errors.Errorf("%w: empty ssh host in %q", ErrConfig, target)
	}

	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return errors.Errorf("%w: invalid ssh port in %q", ErrConfig, target)
		}
		s.Port = port
	}

	s.Host = host
	if user != "" {
		s.User = user
	}
	return nil
}

func (s SSH) Enabled() bool {
	return s.Host != ""
}

// PrivilegeRequired defaults to true.
func (i Inventory) PrivilegeRequired() bool {
	return i.RequirePrivilege == nil || *i.RequirePrivilege
}

func (c *Config) Validate() error {
	switch c.Inventory.Source {
	case SourceVirsh, SourceRPC:
	default:
		return errors.Errorf("%w: unknown inventory source %q", ErrConfig, c.Inventory.Source)
	}

	switch c.Inventory.NeighborSource {
	case NeighborsIP, NeighborsNetlink:
	default:
		return errors.Errorf("%w: unknown neighbor source %q", ErrConfig, c.Inventory.NeighborSource)
	}

	if c.Inventory.Concurrency < 0 {
		return errors.Errorf("%w: concurrency must not be negative", ErrConfig)
	}
	if c.Virsh.Timeout < 0 {
		return errors.Errorf("%w: virsh timeout must not be negative", ErrConfig)
	}

	if c.SSH.Enabled() {
		if c.Inventory.Source == SourceRPC {
			return errors.Errorf("%w: the rpc source only reads the local libvirt socket", ErrConfig)
		}
		if c.Inventory.NeighborSource == NeighborsNetlink {
			return errors.Errorf("%w: the netlink neighbor source only reads the local host", ErrConfig)
		}
	}

	return nil
}

// StateTable is the builtin table extended with the configured values.
func (c *Config) StateTable() *vm.StateTable {
	return vm.DefaultStateTable().
		Add(vm.StateUp, c.States.Up...).
		Add(vm.StateDown, c.States.Down...).
		Add(vm.StateUnknown, c.States.Unknown...)
}
