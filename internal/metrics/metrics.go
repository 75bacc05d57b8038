// Package metrics exposes Prometheus collectors for the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several servers can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	Uploads        *prometheus.CounterVec
	PartsExtracted prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotedesk_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotedesk_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		Uploads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotedesk_uploads_total",
				Help: "Archive uploads by result",
			},
			[]string{"result"},
		),
		PartsExtracted: f.NewCounter(prometheus.CounterOpts{
			Name: "quotedesk_parts_extracted_total",
			Help: "Part numbers read from uploaded spreadsheets",
		}),
	}
}

func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(route).Observe(d.Seconds())
}

// Upload results.
const (
	UploadOK        = "ok"
	UploadNoSheet   = "no_spreadsheet"
	UploadSheetFail = "sheet_failed"
	UploadRejected  = "rejected"
	UploadError     = "error"
)

func (m *Metrics) ObserveUpload(result string, parts int) {
	m.Uploads.WithLabelValues(result).Inc()
	if parts > 0 {
		m.PartsExtracted.Add(float64(parts))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
