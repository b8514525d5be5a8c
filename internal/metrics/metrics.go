// Package metrics exposes capture outcomes to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	accessRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snapgo",
		Name:      "access_requests_total",
		Help:      "Camera access requests by outcome.",
	}, []string{"result"})
	captures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snapgo",
		Name:      "captures_total",
		Help:      "Photo captures by outcome.",
	}, []string{"result"})
	sessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "snapgo",
		Name:      "session_active",
		Help:      "1 while a camera session is open.",
	})
	encodeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "snapgo",
		Name:      "capture_encode_seconds",
		Help:      "Time spent scaling and encoding a photo.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
	})
)

// Observer records capture events. It satisfies capture.Observer.
type Observer struct{}

func (Observer) ObserveAccess(result string) {
	accessRequests.WithLabelValues(result).Inc()
}

func (Observer) ObserveCapture(result string, encode time.Duration) {
	captures.WithLabelValues(result).Inc()
	if encode > 0 {
		encodeSeconds.Observe(encode.Seconds())
	}
}

func (Observer) ObserveSession(active bool) {
	if active {
		sessionActive.Set(1)
		return
	}
	sessionActive.Set(0)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
