package aptoosh

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes recorded in aptoosh_operations_total.
const (
	outcomeOK        = "ok"
	outcomeCancelled = "cancelled"
	outcomeNotFound  = "not_found"
	outcomeRejected  = "rejected"
	outcomeTampered  = "tampered"
	outcomeError     = "error"
)

// metrics holds the client's collectors. A nil *metrics records nothing.
type metrics struct {
	operations   *prometheus.CounterVec
	signDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aptoosh",
				Name:      "operations_total",
				Help:      "Payload operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		signDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aptoosh",
			Name:      "sign_duration_seconds",
			Help:      "Time spent waiting for the signer, including user prompts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms ~ 164s
		}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.signDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(operation string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcomeOf(err)).Inc()
}

func (m *metrics) observeSign(d time.Duration) {
	if m == nil {
		return
	}
	m.signDuration.Observe(d.Seconds())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrUserCancelled):
		return outcomeCancelled
	case errors.Is(err, ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrIntegrityMismatch):
		return outcomeTampered
	case errors.Is(err, ErrDecryptionFailed), errors.Is(err, ErrAlreadyPublished), errors.Is(err, ErrInvalidInput):
		return outcomeRejected
	}
	return outcomeError
}
