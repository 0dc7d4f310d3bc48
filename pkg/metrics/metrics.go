package metrics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ardnew/cdcserial/device/class/cdc"
	"github.com/ardnew/cdcserial/pkg"
)

const namespace = "cdc_serial"

// Source provides a counter snapshot. *cdc.Serial implements it.
type Source interface {
	Stats() cdc.Stats
}

// SourceFunc adapts a function to Source.
type SourceFunc func() cdc.Stats

// Stats calls f.
func (f SourceFunc) Stats() cdc.Stats { return f() }

var (
	descAccepted = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "tx", "accepted_bytes_total"),
		"Bytes queued by Write.",
		[]string{"port"}, nil)
	descDropped = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "tx", "dropped_bytes_total"),
		"Bytes refused by truncated writes.",
		[]string{"port"}, nil)
	descTransmitted = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "tx", "transmitted_bytes_total"),
		"Bytes in completed packets.",
		[]string{"port"}, nil)
	descPackets = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "tx", "packets_total"),
		"Completed transmit packets.",
		[]string{"port"}, nil)
	descReceived = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "rx", "received_bytes_total"),
		"Bytes pulled from the device stack.",
		[]string{"port"}, nil)
	descSaturated = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "rx", "saturated_total"),
		"Receive rounds that filled the receive buffer.",
		[]string{"port"}, nil)
	descBuffered = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "buffered_bytes"),
		"Bytes held in a ring buffer.",
		[]string{"port", "direction"}, nil)
	descCapacity = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "capacity_bytes"),
		"Ring buffer capacity.",
		[]string{"port", "direction"}, nil)
	descPending = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "tx", "pending_bytes"),
		"Accepted bytes not yet in a completed packet.",
		[]string{"port"}, nil)
)

// Collector is a prometheus.Collector over a set of named ports.
type Collector struct {
	mutex   sync.RWMutex
	sources map[string]Source
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{sources: make(map[string]Source)}
}

// Add registers src under port. Port names must be unique.
func (c *Collector) Add(port string, src Source) error {
	if port == "" || src == nil {
		return fmt.Errorf("metrics: add %q: %w", port, pkg.ErrInvalidParameter)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.sources[port]; ok {
		return fmt.Errorf("metrics: port %q already registered: %w", port, pkg.ErrAlreadyRunning)
	}
	c.sources[port] = src
	pkg.LogDebug(pkg.ComponentMetrics, "port registered", "port", port)
	return nil
}

// Remove unregisters port. It reports whether port was registered.
func (c *Collector) Remove(port string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.sources[port]; !ok {
		return false
	}
	delete(c.sources, port)
	pkg.LogDebug(pkg.ComponentMetrics, "port removed", "port", port)
	return true
}

// Ports returns the registered port names in sorted order.
func (c *Collector) Ports() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	ports := make([]string, 0, len(c.sources))
	for port := range c.sources {
		ports = append(ports, port)
	}
	sort.Strings(ports)
	return ports
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descAccepted
	ch <- descDropped
	ch <- descTransmitted
	ch <- descPackets
	ch <- descReceived
	ch <- descSaturated
	ch <- descBuffered
	ch <- descCapacity
	ch <- descPending
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for port, src := range c.sources {
		st := src.Stats()

		counter := func(d *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), port)
		}
		counter(descAccepted, st.Accepted)
		counter(descDropped, st.Dropped)
		counter(descTransmitted, st.Transmitted)
		counter(descPackets, st.Packets)
		counter(descReceived, st.Received)
		counter(descSaturated, st.Saturated)

		gauge := func(d *prometheus.Desc, v float64, labels ...string) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, append([]string{port}, labels...)...)
		}
		gauge(descBuffered, float64(st.RxBuffered), "rx")
		gauge(descBuffered, float64(st.TxBuffered), "tx")
		gauge(descCapacity, float64(st.RxCapacity), "rx")
		gauge(descCapacity, float64(st.TxCapacity), "tx")
		gauge(descPending, float64(st.TxPending))
	}
}

var _ prometheus.Collector = (*Collector)(nil)
