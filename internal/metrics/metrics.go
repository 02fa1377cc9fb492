// Package metrics expone contadores Prometheus de escaneos, arbitrajes y alertas.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/valuebot/internal/application/scanner"
)

const namespace = "valuebot"

// Metrics implementa engine.Recorder sobre un registry propio.
type Metrics struct {
	reg *prometheus.Registry

	scans         *prometheus.CounterVec
	scanDuration  *prometheus.HistogramVec
	valueBets     *prometheus.CounterVec
	eventErrors   *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	alertFailures *prometheus.CounterVec
	arbitrage     *prometheus.CounterVec
	expired       prometheus.Counter
}

// New registra los collectors. Con withRuntime añade los de Go y proceso.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		reg: reg,
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Value bet scans by sport and result (ok|partial|error).",
		}, []string{"sport", "result"}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of a sport scan.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"sport"}),
		valueBets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_bets_found_total",
			Help:      "Value bet opportunities returned by scans.",
		}, []string{"sport"}),
		eventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_event_errors_total",
			Help:      "Events whose predictions or quotes could not be read.",
		}, []string{"sport"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_skipped_total",
			Help:      "Predictions or quotes skipped as invalid input.",
		}, []string{"sport"}),
		alertFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_upsert_failures_total",
			Help:      "Opportunities that could not be persisted as alerts.",
		}, []string{"sport"}),
		arbitrage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arbitrage_found_total",
			Help:      "Arbitrage opportunities found by sport scans.",
		}, []string{"sport"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_expired_total",
			Help:      "Active alerts moved to EXPIRED.",
		}),
	}
	reg.MustRegister(m.scans, m.scanDuration, m.valueBets, m.eventErrors,
		m.skipped, m.alertFailures, m.arbitrage, m.expired)
	return m
}

// ObserveScan registra un escaneo de deporte.
func (m *Metrics) ObserveScan(sport string, d time.Duration, res scanner.ScanResult, err error) {
	result := "ok"
	switch {
	case err != nil && len(res.Opportunities) > 0:
		result = "partial"
	case err != nil:
		result = "error"
	}
	m.scans.WithLabelValues(sport, result).Inc()
	m.scanDuration.WithLabelValues(sport).Observe(d.Seconds())
	m.valueBets.WithLabelValues(sport).Add(float64(len(res.Opportunities)))
	m.eventErrors.WithLabelValues(sport).Add(float64(len(res.EventErrors)))
	m.skipped.WithLabelValues(sport).Add(float64(len(res.Skipped)))
	m.alertFailures.WithLabelValues(sport).Add(float64(len(res.AlertFailures)))
}

// ObserveArbitrage registra los arbitrajes encontrados en un deporte.
func (m *Metrics) ObserveArbitrage(sport string, found int) {
	m.arbitrage.WithLabelValues(sport).Add(float64(found))
}

// ObserveExpired registra las alertas expiradas en un ciclo.
func (m *Metrics) ObserveExpired(n int) {
	m.expired.Add(float64(n))
}

// Handler sirve el registry en formato de exposición Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Gatherer devuelve el registry subyacente.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.reg
}
