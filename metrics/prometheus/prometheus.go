// Package prommetrics implements defense.Observer with Prometheus counters.
package prommetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	defense "github.com/jassus213/go-defense"
)

// Observer counts suppressed backend errors and defense fires.
//
// Keys are deliberately not used as labels: they are caller-chosen
// identifiers such as client addresses and would explode cardinality.
type Observer struct {
	SuppressedErrors *prometheus.CounterVec
	Fires            *prometheus.CounterVec
}

var _ defense.Observer = (*Observer)(nil)

// NewObserver creates and registers the counters with reg.
//
// Example:
//
//	obs := prommetrics.NewObserver(prometheus.DefaultRegisterer)
//	c := defense.NewSimple(st, key, 3, time.Minute, defense.WithObserver(obs))
func NewObserver(reg prometheus.Registerer) *Observer {
	return &Observer{
		SuppressedErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "defense",
				Name:      "backend_errors_suppressed_total",
				Help:      "Total counter store errors swallowed by conditions",
			},
			[]string{"op", "kind"}, // op=increase/decrease/reach/destroy/accept, kind=unavailable/protocol
		),
		Fires: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "defense",
				Name:      "fires_total",
				Help:      "Total defense fires",
			},
			[]string{"defense"},
		),
	}
}

// BackendErrorSuppressed increments defense_backend_errors_suppressed_total.
func (o *Observer) BackendErrorSuppressed(op, key string, err error) {
	o.SuppressedErrors.WithLabelValues(op, string(defense.KindOf(err))).Inc()
}

// DefenseFired increments defense_fires_total.
func (o *Observer) DefenseFired(name string) {
	o.Fires.WithLabelValues(name).Inc()
}
