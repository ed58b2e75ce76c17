// Package metrics exports audit results as Prometheus gauges.
package metrics

import (
	"net/http"

	"github.com/mchmarny/fairaudit/pkg/fairness"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fairaudit"

// Recorder holds the gauges for the latest audit per source.
type Recorder struct {
	registry  *prometheus.Registry
	value     *prometheus.GaugeVec
	undefined *prometheus.GaugeVec
	groupSize *prometheus.GaugeVec
	audits    *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_value",
			Help:      "Latest fairness metric value by source and metric",
		}, []string{"source", "metric"}),
		undefined: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_undefined",
			Help:      "1 when the latest metric value is undefined (zero denominator)",
		}, []string{"source", "metric"}),
		groupSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "group_size",
			Help:      "Records per group in the latest audit",
		}, []string{"source", "group"}),
		audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audits_total",
			Help:      "Audits run by outcome",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.value, r.undefined, r.groupSize, r.audits)
	return r
}

// Record publishes one audit result. An undefined metric drops its value
// series and sets its undefined flag.
func (r *Recorder) Record(source string, res fairness.Result, groups ...*fairness.Summary) {
	for _, m := range fairness.Metrics {
		v := res.Get(m)
		if !v.Defined {
			r.value.DeleteLabelValues(source, string(m))
			r.undefined.WithLabelValues(source, string(m)).Set(1)
			continue
		}
		r.value.WithLabelValues(source, string(m)).Set(v.Value)
		r.undefined.WithLabelValues(source, string(m)).Set(0)
	}
	for _, g := range groups {
		if g != nil {
			r.groupSize.WithLabelValues(source, g.Group).Set(float64(g.Size))
		}
	}
	r.audits.WithLabelValues("ok").Inc()
}

// RecordFailure counts an audit that did not produce a result.
func (r *Recorder) RecordFailure() {
	r.audits.WithLabelValues("error").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
