// Package metrics exports an inventory snapshot in the node-exporter textfile format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/walteh/vmls/pkg/inventory"
	"github.com/walteh/vmls/pkg/vm"
	"gitlab.com/tozd/go/errors"
)

var states = []vm.State{vm.StateUp, vm.StateDown, vm.StateUnknown}

// Registry builds a registry holding one snapshot of inv.
func Registry(inv *inventory.Inventory) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	domainState := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vmls_domain_state",
			Help: "1 for the current normalized state of the domain, 0 for the others",
		},
		[]string{"domain", "state"},
	)
	ipAddresses := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vmls_domain_ip_addresses",
			Help: "Number of usable IP addresses resolved for the domain",
		},
		[]string{"domain"},
	)
	disks := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vmls_domain_disks",
			Help: "Number of block devices attached to the domain",
		},
		[]string{"domain"},
	)
	domains := factory.NewGauge(prometheus.GaugeOpts{
		Name: "vmls_inventory_domains",
		Help: "Number of domains with a record in the last inventory",
	})
	failures := factory.NewGauge(prometheus.GaugeOpts{
		Name: "vmls_inventory_build_failures",
		Help: "Number of domains skipped in the last inventory",
	})

	for _, r := range inv.Records() {
		for _, s := range states {
			v := 0.0
			if r.State() == s {
				v = 1
			}
			domainState.WithLabelValues(r.Name(), s.String()).Set(v)
		}

		ips := r.IPAddresses()
		if len(ips) == 1 && ips[0] == vm.NoIPFound {
			ips = nil
		}
		ipAddresses.WithLabelValues(r.Name()).Set(float64(len(ips)))

		d := r.Disks()
		if len(d) == 1 && d[0] == vm.NoDiskFound {
			d = nil
		}
		disks.WithLabelValues(r.Name()).Set(float64(len(d)))
	}

	domains.Set(float64(inv.Count()))
	failures.Set(float64(len(inv.Failures())))

	return reg
}

// WriteTextfile writes the snapshot to path atomically, for the node-exporter textfile collector.
func WriteTextfile(path string, inv *inventory.Inventory) error {
	if err := prometheus.WriteToTextfile(path, Registry(inv)); err != nil {
		return errors.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
