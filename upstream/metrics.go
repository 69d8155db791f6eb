package upstream

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a List's bookkeeping counters as Prometheus metrics.
// The core never probes endpoints itself (see spec's Non-goals), so this
// reports exactly what Ok/Fail/DNS refresh already track — alive-set
// size and per-upstream counters — rather than adding any new health
// signal of its own.
type Collector struct {
	list *List

	aliveCount  *prometheus.Desc
	totalCount  *prometheus.Desc
	errors      *prometheus.Desc
	checked     *prometheus.Desc
	dnsRequests *prometheus.Desc
}

// NewCollector builds a Collector for list. The caller registers it with
// whatever prometheus.Registerer it uses.
func NewCollector(name string, list *List) *Collector {
	constLabels := prometheus.Labels{"list": name}
	return &Collector{
		list: list,
		aliveCount: prometheus.NewDesc(
			"upstream_list_alive_count", "Number of currently alive upstreams in the list.",
			nil, constLabels,
		),
		totalCount: prometheus.NewDesc(
			"upstream_list_total_count", "Total number of upstreams in the list.",
			nil, constLabels,
		),
		errors: prometheus.NewDesc(
			"upstream_errors_total", "Current error streak count for an upstream.",
			[]string{"upstream"}, constLabels,
		),
		checked: prometheus.NewDesc(
			"upstream_checked_total", "Number of times an upstream has been selected by Get.",
			[]string{"upstream"}, constLabels,
		),
		dnsRequests: prometheus.NewDesc(
			"upstream_dns_requests_in_flight", "Number of DNS requests currently in flight for an upstream.",
			[]string{"upstream"}, constLabels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.aliveCount
	ch <- c.totalCount
	ch <- c.errors
	ch <- c.checked
	ch <- c.dnsRequests
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.list.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.aliveCount, prometheus.GaugeValue, float64(snap.Alive))
	ch <- prometheus.MustNewConstMetric(c.totalCount, prometheus.GaugeValue, float64(snap.Total))

	for _, u := range snap.Upstreams {
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.GaugeValue, float64(u.Errors), u.Name)
		ch <- prometheus.MustNewConstMetric(c.checked, prometheus.CounterValue, float64(u.Checked), u.Name)
		ch <- prometheus.MustNewConstMetric(c.dnsRequests, prometheus.GaugeValue, float64(u.DNSRequests), u.Name)
	}
}
