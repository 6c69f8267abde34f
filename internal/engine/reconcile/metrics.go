package reconcile

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts reconciliation outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	relabeled    prometheus.Counter
	softFailures prometheus.Counter
	stagedWrites prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardsheets_reconcile_requests_total",
			Help: "Reconciliation requests by outcome",
		}, []string{"outcome"}), // committed, noop, invalid, not_found, failed
		relabeled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardsheets_reconcile_cards_relabeled_total",
			Help: "Cards whose typeOfProfile was rewritten by a profile rename",
		}),
		softFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardsheets_reconcile_soft_failures_total",
			Help: "Card queries that failed and were skipped",
		}),
		stagedWrites: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardsheets_reconcile_batch_writes",
			Help:    "Writes per committed reconciliation batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.relabeled, m.softFailures, m.stagedWrites} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) outcome(name string) {
	if m != nil {
		m.requests.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) cardsRelabeled(n int) {
	if m != nil && n > 0 {
		m.relabeled.Add(float64(n))
	}
}

func (m *Metrics) softFailure() {
	if m != nil {
		m.softFailures.Inc()
	}
}

func (m *Metrics) batchWrites(n int) {
	if m != nil {
		m.stagedWrites.Observe(float64(n))
	}
}
