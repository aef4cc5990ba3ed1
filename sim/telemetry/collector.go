// Package telemetry exposes simulation counters as Prometheus metrics.
// The collector reads a Snapshot taken on the simulation goroutine, so a
// scrape never touches live simulator state.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wiresim/wiresim/sim"
)

const namespace = "wiresim"

// SnapshotFunc returns the latest simulator snapshot.
type SnapshotFunc func() sim.Snapshot

// Collector implements prometheus.Collector over simulator snapshots.
type Collector struct {
	snapshot SnapshotFunc

	generated       *prometheus.Desc
	delivered       *prometheus.Desc
	lost            *prometheus.Desc
	fallbacks       *prometheus.Desc
	lossRatio       *prometheus.Desc
	coins           *prometheus.Desc
	clock           *prometheus.Desc
	wireRemaining   *prometheus.Desc
	wiresColliding  *prometheus.Desc
	storageUsed     *prometheus.Desc
	storageCapacity *prometheus.Desc
}

// NewCollector creates a collector. Panics if snapshot is nil.
func NewCollector(snapshot SnapshotFunc) *Collector {
	if snapshot == nil {
		panic("telemetry: nil snapshot func")
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		snapshot:        snapshot,
		generated:       desc("packets_generated_total", "Packets created by sources."),
		delivered:       desc("packets_delivered_total", "Packets counted at sinks."),
		lost:            desc("packets_lost_total", "Packets written off as lost."),
		fallbacks:       desc("fallback_placements_total", "Packets placed on a wire of a different type."),
		lossRatio:       desc("loss_ratio", "Lost packets over generated packets."),
		coins:           desc("coins", "Coins currently in the wallet."),
		clock:           desc("clock_milliseconds", "Simulated time."),
		wireRemaining:   desc("wire_budget_remaining", "Unused wire length of the level budget."),
		wiresColliding:  desc("wires_colliding", "Wires whose path crosses a system."),
		storageUsed:     desc("storage_used", "Packets held in a relay's storage.", "system"),
		storageCapacity: desc("storage_capacity", "Storage capacity of a relay.", "system"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.generated, c.delivered, c.lost, c.fallbacks, c.lossRatio, c.coins,
		c.clock, c.wireRemaining, c.wiresColliding, c.storageUsed, c.storageCapacity,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.snapshot()
	counter := func(d *prometheus.Desc, v int) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(c.generated, snap.Counters.Generated)
	counter(c.delivered, snap.Counters.Delivered)
	counter(c.lost, snap.Counters.Lost)
	counter(c.fallbacks, snap.Counters.Fallbacks)
	gauge(c.lossRatio, snap.LossPercentage/100)
	gauge(c.coins, float64(snap.Coins))
	gauge(c.clock, float64(snap.Clock))
	gauge(c.wireRemaining, snap.WireRemaining)

	colliding := 0
	for _, w := range snap.Wires {
		if len(w.Segments) > 0 {
			colliding++
		}
	}
	gauge(c.wiresColliding, float64(colliding))

	for _, s := range snap.Systems {
		if s.Capacity == 0 {
			continue
		}
		gauge(c.storageUsed, float64(s.Used), s.Label)
		gauge(c.storageCapacity, float64(s.Capacity), s.Label)
	}
}

// Register adds a collector for snapshot to reg, defaulting to the global
// registry when reg is nil.
func Register(reg prometheus.Registerer, snapshot SnapshotFunc) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := NewCollector(snapshot)
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*Collector); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", namespace)
		}
		return nil, err
	}
	return c, nil
}

// WriteTextfile writes the metrics of one snapshot in the Prometheus text
// exposition format, for the node exporter's textfile collector.
func WriteTextfile(path string, snap sim.Snapshot) error {
	reg := prometheus.NewRegistry()
	if _, err := Register(reg, func() sim.Snapshot { return snap }); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
