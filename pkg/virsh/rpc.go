package virsh

import (
	"context"
	"net"
	"time"

	"github.com/digitalocean/go-qemu/hypervisor"
	"github.com/digitalocean/go-qemu/qemu"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const DefaultLibvirtSocket = "/var/run/libvirt/libvirt-sock"

// RPCLister enumerates domains over the libvirt RPC socket instead of spawning virsh.
type RPCLister struct {
	driver hypervisor.Driver
}

// NewRPCListerWithDriver wraps an already connected driver.
func NewRPCListerWithDriver(driver hypervisor.Driver) *RPCLister {
	return &RPCLister{driver: driver}
}

// NewRPCLister connects to the libvirt socket and checks it answers.
func NewRPCLister(ctx context.Context, socket string) (*RPCLister, error) {
	logger := zerolog.Ctx(ctx)

	if socket == "" {
		socket = DefaultLibvirtSocket
	}

	connFactory := func() (net.Conn, error) {
		conn, err := net.DialTimeout("unix", socket, 5*time.Second)
		if err != nil {
			return nil, errors.Errorf("connecting to libvirt at %s: %w", socket, err)
		}
		return conn, nil
	}

	driver := hypervisor.NewRPCDriver(connFactory)

	version, err := driver.Version()
	if err != nil {
		return nil, errors.Errorf("connecting to libvirt: %w", err)
	}

	logger.Debug().Str("socket", socket).Str("libvirtVersion", version).Msg("Connected to libvirt")

	return &RPCLister{driver: driver}, nil
}

// Names implements the same enumeration as Client.Names.
func (l *RPCLister) Names(ctx context.Context, running bool) ([]string, error) {
	names, err := l.driver.DomainNames()
	if err != nil {
		return nil, errors.Errorf("%w: listing domains: %s", ErrCommandFailed, err)
	}
	if !running {
		return names, nil
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// inactive domains have no monitor to open
		status, err := l.status(name)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("domain", name).Msg("Domain status unavailable, treating as not running")
			continue
		}
		if status == qemu.StatusRunning {
			out = append(out, name)
		}
	}
	return out, nil
}

func (l *RPCLister) status(name string) (qemu.Status, error) {
	monitor, err := l.driver.NewMonitor(name)
	if err != nil {
		return 0, errors.Errorf("creating monitor for domain: %w", err)
	}

	if err := monitor.Connect(); err != nil {
		return 0, errors.Errorf("connecting to monitor: %w", err)
	}

	// Closing the domain disconnects the monitor.
	domain, err := qemu.NewDomain(monitor, name)
	if err != nil {
		_ = monitor.Disconnect()
		return 0, errors.Errorf("creating domain: %w", err)
	}
	defer domain.Close()

	status, err := domain.Status()
	if err != nil {
		return 0, errors.Errorf("getting domain status: %w", err)
	}
	return status, nil
}
