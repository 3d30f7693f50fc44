package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records booking outcomes and the latency of external calls.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	bookings      *prometheus.CounterVec
	externalCalls *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachbooking",
			Name:      "bookings_total",
			Help:      "Booking confirmation attempts by outcome.",
		}, []string{"outcome"}),
		externalCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coachbooking",
			Name:      "external_call_duration_seconds",
			Help:      "Duration of calls to the payment processor, invite builder and mail relay.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.bookings, m.externalCalls)
	}
	return m
}

// ObserveBooking counts one finished booking attempt. outcome is "ok" or an
// error kind.
func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCall(target string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.externalCalls.WithLabelValues(target, result).Observe(time.Since(started).Seconds())
}
