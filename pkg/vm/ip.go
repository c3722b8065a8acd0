package vm

import (
	"context"
	"net/netip"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/vmls/pkg/table"
	"github.com/walteh/vmls/pkg/virsh"
	"gitlab.com/tozd/go/errors"
	"libvirt.org/go/libvirtxml"
)

// Neighbor is one entry of the kernel neighbor table.
type Neighbor struct {
	IP  string
	MAC string
}

// NeighborSource reads the neighbor table.
type NeighborSource interface {
	Neighbors(ctx context.Context) ([]Neighbor, error)
}

// IPNeighbors reads the table through `ip neigh show`, so it also works over SSH.
type IPNeighbors struct {
	client *virsh.Client
}

func NewIPNeighbors(client *virsh.Client) *IPNeighbors {
	return &IPNeighbors{client: client}
}

func (n *IPNeighbors) Neighbors(ctx context.Context) ([]Neighbor, error) {
	res, err := n.client.NeighShow(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, errors.Errorf("ip neigh show exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return ParseNeighbors(res.Stdout), nil
}

// ParseNeighbors reads `ip neigh show` output: ADDR dev IF lladdr MAC STATE.
// Rows without a link-layer address (FAILED, INCOMPLETE) are skipped.
func ParseNeighbors(text string) []Neighbor {
	var out []Neighbor
	for _, fields := range table.DataRows(text, 0) {
		for i := 1; i+1 < len(fields); i++ {
			if fields[i] == "lladdr" {
				out = append(out, Neighbor{IP: fields[0], MAC: fields[i+1]})
				break
			}
		}
	}
	return out
}

// IsLinkLocal reports IPv6 link-local unicast addresses (fe80::/10).
func IsLinkLocal(addr string) bool {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(addr), "fe80:")
	}
	return a.Is6() && a.IsLinkLocalUnicast()
}

func usable(addrs []string) []string {
	var out []string
	for _, a := range addrs {
		if a != "" && !IsLinkLocal(a) {
			out = append(out, a)
		}
	}
	return out
}

// neighborIPs collects, per MAC in order, the addresses the table holds for it.
func neighborIPs(neighbors []Neighbor, macs []string) []string {
	var out []string
	for _, mac := range macs {
		for _, n := range neighbors {
			if strings.EqualFold(n.MAC, mac) {
				out = append(out, n.IP)
			}
		}
	}
	return out
}

// parseDomIfAddr reads `virsh domifaddr`: two header lines, address/prefix in column 4.
func parseDomIfAddr(text string) []string {
	var out []string
	for _, fields := range table.DataRows(text, 2) {
		if len(fields) < 4 {
			continue
		}
		addr, _, _ := strings.Cut(fields[3], "/")
		out = append(out, addr)
	}
	return out
}

// parseDomainIPs collects every <ip address='…'/> declared on an interface.
func parseDomainIPs(doc string) ([]string, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, nil
	}

	var domain libvirtxml.Domain
	if err := domain.Unmarshal(doc); err != nil {
		return nil, errors.Errorf("parsing domain xml: %w", err)
	}
	if domain.Devices == nil {
		return nil, nil
	}

	var out []string
	for _, iface := range domain.Devices.Interfaces {
		for _, ip := range iface.IP {
			out = append(out, ip.Address)
		}
	}
	return out, nil
}

// resolveIPs walks neighbor table, domifaddr and the domain xml, stopping at the first
// stage with a usable address.
func (b *Builder) resolveIPs(ctx context.Context, name string, macs []string, doc func() (string, error)) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	if len(macs) > 0 && b.neighbors != nil {
		// a missing or failing neighbor source only degrades this stage
		neighbors, err := b.neighbors.Neighbors(ctx)
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		if err != nil {
			logger.Warn().Err(err).Str("domain", name).Msg("Reading neighbor table failed")
		} else if ips := usable(neighborIPs(neighbors, macs)); len(ips) > 0 {
			logger.Debug().Str("domain", name).Strs("ips", ips).Msg("Resolved addresses from neighbor table")
			return ips, nil
		}
	}

	res, err := b.client.DomIfAddr(ctx, name)
	if err != nil {
		return nil, err
	}
	warnIfFailed(ctx, name, "domifaddr", res)
	if ips := usable(parseDomIfAddr(res.Stdout)); len(ips) > 0 {
		logger.Debug().Str("domain", name).Strs("ips", ips).Msg("Resolved addresses from domifaddr")
		return ips, nil
	}

	text, err := doc()
	if err != nil {
		return nil, err
	}
	declared, err := parseDomainIPs(text)
	if err != nil {
		logger.Warn().Err(err).Str("domain", name).Msg("Reading addresses from domain xml failed")
	}
	if ips := usable(declared); len(ips) > 0 {
		logger.Debug().Str("domain", name).Strs("ips", ips).Msg("Resolved addresses from domain xml")
		return ips, nil
	}

	return []string{NoIPFound}, nil
}
