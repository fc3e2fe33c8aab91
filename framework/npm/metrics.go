package npm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "ui5"
	metricsSubsystem = "framework"
)

// Install results recorded by Metrics.
const (
	ResultInstalled = "installed"
	ResultCached    = "cached"
	ResultError     = "error"
)

// Metrics holds prometheus collectors for registry access and package
// installation. A nil *Metrics records nothing.
type Metrics struct {
	installs         *prometheus.CounterVec
	installDuration  *prometheus.HistogramVec
	registryRequests *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		installs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "package_installs_total",
				Help:      "Framework package install requests by result.",
			},
			[]string{"result"}, // installed, cached or error
		),
		installDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "package_install_duration_seconds",
				Help:      "Time spent installing a framework package in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
			},
			[]string{"result"},
		),
		registryRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "registry_requests_total",
				Help:      "Requests sent to the npm registry by kind and result.",
			},
			[]string{"kind", "result"}, // kind: packument or tarball
		),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.installs, m.installDuration, m.registryRequests}
}

// MustRegister registers all collectors with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.Collectors()...)
}

// ObserveInstall records one InstallPackage call.
func (m *Metrics) ObserveInstall(d time.Duration, cached bool, err error) {
	if m == nil {
		return
	}
	result := ResultInstalled
	switch {
	case err != nil:
		result = ResultError
	case cached:
		result = ResultCached
	}
	m.installs.WithLabelValues(result).Inc()
	m.installDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveRequest records one registry round trip.
func (m *Metrics) ObserveRequest(kind string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.registryRequests.WithLabelValues(kind, result).Inc()
}
