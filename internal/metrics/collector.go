// Package metrics counts change records with Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/catom/internal/atom"
	"github.com/roach88/catom/internal/change"
)

// Collector is a change.Observer that counts the records it sees.
//
//	catom_changes_total{type, member, kind}
//	catom_container_ops_total{type, member, op}
type Collector struct {
	changes      *prometheus.CounterVec
	containerOps *prometheus.CounterVec
}

// NewCollector creates the counters and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catom_changes_total",
				Help: "Change records dispatched, by type, member and kind.",
			},
			[]string{"type", "member", "kind"},
		),
		containerOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catom_container_ops_total",
				Help: "In-place container mutations, by type, member and operation.",
			},
			[]string{"type", "member", "op"},
		),
	}
	for _, col := range []prometheus.Collector{c.changes, c.containerOps} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe counts rec. It never fails.
func (c *Collector) Observe(rec change.Record) error {
	c.changes.WithLabelValues(rec.Type, rec.Name, rec.Kind.String()).Inc()
	if rec.Container != nil {
		c.containerOps.WithLabelValues(rec.Type, rec.Name, string(rec.Container.Op)).Inc()
	}
	return nil
}

// Watch registers the collector on the named members of inst, or on all of
// them when names is empty, and returns the handle it registered.
func (c *Collector) Watch(inst *atom.Instance, names ...string) (*atom.Handle, error) {
	if len(names) == 0 {
		for _, m := range inst.Type().Members() {
			names = append(names, m.Name())
		}
	}
	h := atom.Observer(c)
	for _, name := range names {
		if _, err := inst.Observe(name, h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Changes returns the counter for one label combination.
func (c *Collector) Changes(typeName, member string, kind change.Kind) prometheus.Counter {
	return c.changes.WithLabelValues(typeName, member, kind.String())
}

// ContainerOps returns the counter for one container operation.
func (c *Collector) ContainerOps(typeName, member string, op change.Op) prometheus.Counter {
	return c.containerOps.WithLabelValues(typeName, member, string(op))
}
