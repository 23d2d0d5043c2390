// Package metrics exposes Prometheus collectors for the job lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvasgen_jobs_enqueued_total",
		Help: "Jobs successfully enqueued on the backend, by kind.",
	}, []string{"kind"})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvasgen_jobs_finished_total",
		Help: "Jobs that reached the finished state, by kind.",
	}, []string{"kind"})

	JobsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvasgen_jobs_cancelled_total",
		Help: "Jobs cancelled locally or by the server, by kind.",
	}, []string{"kind"})

	Progress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canvasgen_generation_progress",
		Help: "Progress of the current generation burst, 0 to 1.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
