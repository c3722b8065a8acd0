// Package vmtest scripts a FakeRunner with realistic virsh output.
package vmtest

import (
	"fmt"
	"strings"

	"github.com/walteh/vmls/pkg/execute"
)

// Domain describes what virsh reports for one domain.
type Domain struct {
	Name   string
	Device string
	MAC    string
	// IP is served by domifaddr, with a /24 suffix. Empty leaves the table without rows.
	IP    string
	Disks []string
	// State is the raw domstate output.
	State string
	// XML overrides the generated dumpxml document.
	XML string
}

// Root makes the privilege probe succeed.
func Root(f *execute.FakeRunner) *execute.FakeRunner {
	return f.On("id -u", "0\n")
}

// Names scripts both enumeration listings.
func Names(f *execute.FakeRunner, all []string, running []string) *execute.FakeRunner {
	f.On("virsh list --all --name", strings.Join(all, "\n")+"\n\n")
	f.On("virsh list --state-running --name", strings.Join(running, "\n")+"\n\n")
	return f
}

// Neighbors scripts `ip neigh show`.
func Neighbors(f *execute.FakeRunner, rows ...string) *execute.FakeRunner {
	return f.On("ip neigh show", strings.Join(rows, "\n")+"\n")
}

// Script answers every per-domain query for d.
func Script(f *execute.FakeRunner, d Domain) *execute.FakeRunner {
	f.On("virsh domiflist "+d.Name, DomIfList(d.Device, d.MAC))
	f.On("virsh domifaddr "+d.Name, DomIfAddr(d.Device, d.MAC, d.IP))
	f.On("virsh domblklist "+d.Name, DomBlkList(d.Disks...))
	f.On("virsh domstate "+d.Name, d.State+"\n\n")

	doc := d.XML
	if doc == "" {
		doc = DumpXML(d.Name, d.MAC, "")
	}
	f.On("virsh dumpxml "+d.Name, doc)
	return f
}

func DomIfList(device, mac string) string {
	var b strings.Builder
	b.WriteString(" Interface   Type      Source    Model    MAC\n")
	b.WriteString("-------------------------------------------------------------\n")
	if device != "" {
		fmt.Fprintf(&b, " %-11s network   default   virtio   %s\n", device, mac)
	}
	b.WriteString("\n")
	return b.String()
}

func DomIfAddr(device, mac, ip string) string {
	var b strings.Builder
	b.WriteString(" Name       MAC address          Protocol     Address\n")
	b.WriteString("-------------------------------------------------------------------------------\n")
	if ip != "" {
		fmt.Fprintf(&b, " %-10s %-20s ipv4         %s/24\n", device, mac, ip)
	}
	b.WriteString("\n")
	return b.String()
}

func DomBlkList(disks ...string) string {
	var b strings.Builder
	b.WriteString(" Target   Source\n")
	b.WriteString("------------------------------------------------\n")
	for i, d := range disks {
		fmt.Fprintf(&b, " vd%c      %s\n", 'a'+i, d)
	}
	b.WriteString("\n")
	return b.String()
}

// DumpXML renders a minimal domain document. A non-empty ip is declared on the interface.
func DumpXML(name, mac, ip string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<domain type='kvm'>\n  <name>%s</name>\n  <devices>\n", name)
	if mac != "" {
		b.WriteString("    <interface type='network'>\n")
		fmt.Fprintf(&b, "      <mac address='%s'/>\n", mac)
		b.WriteString("      <source network='default'/>\n")
		if ip != "" {
			fmt.Fprintf(&b, "      <ip address='%s' family='ipv4' prefix='24'/>\n", ip)
		}
		b.WriteString("    </interface>\n")
	}
	b.WriteString("  </devices>\n</domain>\n")
	return b.String()
}
