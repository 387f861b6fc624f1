package capture

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tabshot/internal/services"
)

var (
	capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabshot_captures_total",
		Help: "Finished capture attempts by result.",
	}, []string{"result"})
	captureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tabshot_capture_duration_seconds",
		Help:    "Wall time from Started to the terminal event of one URL.",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34},
	})
)

func (o *Orchestrator) observe(start time.Time, err error) {
	capturesTotal.WithLabelValues(services.Kind(err)).Inc()
	captureDuration.Observe(time.Since(start).Seconds())
}
