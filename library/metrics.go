package library

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger. A nil *Metrics records nothing.
type Metrics struct {
	LoansBorrowed prometheus.Counter
	LoansReturned prometheus.Counter

	// Rejections by reason: "not_found", "conflict", "invalid_input", "contention"
	Rejections *prometheus.CounterVec
	Contention prometheus.Counter

	DebtAccruedCents prometheus.Counter

	OperationDuration *prometheus.HistogramVec
}

// NewMetrics registers the ledger metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoansBorrowed: factory.NewCounter(prometheus.CounterOpts{
			Name: "library_loans_borrowed_total",
			Help: "Total loans opened",
		}),
		LoansReturned: factory.NewCounter(prometheus.CounterOpts{
			Name: "library_loans_returned_total",
			Help: "Total loans closed by a return",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "library_ledger_rejections_total",
			Help: "Ledger operations that failed, by operation and error kind",
		}, []string{"operation", "reason"}),
		Contention: factory.NewCounter(prometheus.CounterOpts{
			Name: "library_ledger_contention_total",
			Help: "Write attempts that gave up waiting for a lock",
		}),
		DebtAccruedCents: factory.NewCounter(prometheus.CounterOpts{
			Name: "library_debt_accrued_cents_total",
			Help: "Total settled late-return debt, in cents",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "library_ledger_operation_duration_seconds",
			Help:    "Duration of ledger write operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementBorrowed() {
	if m != nil {
		m.LoansBorrowed.Inc()
	}
}

func (m *Metrics) IncrementReturned(debt Cents) {
	if m != nil {
		m.LoansReturned.Inc()
		if debt > 0 {
			m.DebtAccruedCents.Add(float64(debt))
		}
	}
}

func (m *Metrics) IncrementRejection(operation string, err error) {
	if m != nil {
		kind := KindOf(err)
		m.Rejections.WithLabelValues(operation, kind.String()).Inc()
		if kind == KindContention {
			m.Contention.Inc()
		}
	}
}

func (m *Metrics) ObserveDuration(operation string, d time.Duration) {
	if m != nil {
		m.OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}
