package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records sync outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	syncsTotal      *prometheus.CounterVec
	checkDuration   *prometheus.HistogramVec
	downloadedBytes prometheus.Counter
	installsTotal   *prometheus.CounterVec
}

// New registers the client metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	promFactory := promauto.With(reg)
	return &Metrics{
		syncsTotal: promFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codepush_sync_total",
				Help: "Total number of finished syncs labelled by final status",
			},
			[]string{"status"},
		),
		checkDuration: promFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codepush_update_check_duration_seconds",
				Help:    "Duration of update checks against the update server labelled by outcome",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		downloadedBytes: promFactory.NewCounter(prometheus.CounterOpts{
			Name: "codepush_downloaded_bytes_total",
			Help: "Total number of package bytes downloaded",
		}),
		installsTotal: promFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codepush_install_total",
				Help: "Total number of package installs labelled by install mode",
			},
			[]string{"mode"},
		),
	}
}

func (m *Metrics) RecordSync(status string) {
	if m == nil {
		return
	}
	m.syncsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCheck(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.checkDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) AddDownloadedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.downloadedBytes.Add(float64(n))
}

func (m *Metrics) RecordInstall(mode string) {
	if m == nil {
		return
	}
	m.installsTotal.WithLabelValues(mode).Inc()
}
