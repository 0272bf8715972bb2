// Package metrics exposes Prometheus collectors for calls, subscriptions and
// signal deliveries. All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/qibridge/core"
)

const namespace = "qibridge"

// Metrics groups the collectors of one session.
type Metrics struct {
	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	subscriptions prometheus.Gauge
	deliveries    *prometheus.CounterVec
	panics        *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	liveValues    prometheus.GaugeFunc
}

// Options configures New.
type Options struct {
	// Registerer receives the collectors. Defaults to a fresh registry so
	// several sessions in one process do not collide.
	Registerer prometheus.Registerer
	// ConstLabels are attached to every series, e.g. {"robot": "nao"}.
	ConstLabels prometheus.Labels
	// LiveValues, when set, is sampled by a gauge reporting live value handles.
	LiveValues func() float64
}

// New creates and registers the collectors.
func New(optFns ...func(o *Options)) (*Metrics, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}

	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "calls_total", ConstLabels: opts.ConstLabels,
			Help: "Remote method calls by service, method and outcome.",
		}, []string{"service", "method", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "call_duration_seconds", ConstLabels: opts.ConstLabels,
			Help:    "Latency of remote method calls.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"service", "method"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "subscriptions", ConstLabels: opts.ConstLabels,
			Help: "Signal subscriptions currently registered with the transport.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_deliveries_total", ConstLabels: opts.ConstLabels,
			Help: "Signal events handed to handlers.",
		}, []string{"signal"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "handler_panics_total", ConstLabels: opts.ConstLabels,
			Help: "Signal handlers that panicked.",
		}, []string{"signal"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_dropped_total", ConstLabels: opts.ConstLabels,
			Help: "Signal events dropped because the channel was torn down or its backlog was full.",
		}, []string{"signal"}),
	}
	cs := []prometheus.Collector{m.calls, m.callDuration, m.subscriptions, m.deliveries, m.panics, m.dropped}
	if opts.LiveValues != nil {
		m.liveValues = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "live_values", ConstLabels: opts.ConstLabels,
			Help: "Value handles not yet released.",
		}, opts.LiveValues)
		cs = append(cs, m.liveValues)
	}
	for _, c := range cs {
		if err := opts.Registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveCall records one finished call. The outcome label is core.KindOf(err).
func (m *Metrics) ObserveCall(service, method string, dur time.Duration, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(service, method, core.KindOf(err)).Inc()
	m.callDuration.WithLabelValues(service, method).Observe(dur.Seconds())
}

// SubscriptionAdded increments the live subscription gauge.
func (m *Metrics) SubscriptionAdded() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

// SubscriptionRemoved decrements the live subscription gauge.
func (m *Metrics) SubscriptionRemoved() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}

// ObserveDelivery counts one event delivered on signal.
func (m *Metrics) ObserveDelivery(signal string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(signal).Inc()
}

// ObservePanic counts one handler panic on signal.
func (m *Metrics) ObservePanic(signal string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(signal).Inc()
}

// ObserveDropped counts one event discarded on signal.
func (m *Metrics) ObserveDropped(signal string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(signal).Inc()
}
