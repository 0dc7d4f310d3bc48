// Package metrics exports serial port counters to Prometheus.
//
// A Collector reads a snapshot from each registered port on every scrape,
// so the transfer path pays nothing for being observed:
//
//	c := metrics.NewCollector()
//	c.Add("ttyACM0", port)
//	prometheus.MustRegister(c)
package metrics
