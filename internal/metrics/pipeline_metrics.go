package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics содержит метрики чекаут-пайплайна.
type PipelineMetrics struct {
	// Счётчики операций
	checkoutsStarted    prometheus.Counter
	transitionsAccepted *prometheus.CounterVec
	transitionsRejected prometheus.Counter
	paymentAttempts     *prometheus.CounterVec
	escrowDispositions  *prometheus.CounterVec
	disputesOpened      prometheus.Counter
	disputesResolved    prometheus.Counter
	scheduleFired       *prometheus.CounterVec

	// Гистограммы времени выполнения
	stepDuration *prometheus.HistogramVec

	// Счётчики событий outbox
	outboxEvents prometheus.Counter

	// Gauge для заказов в нетерминальных статусах
	activeOrders prometheus.Gauge
}

// NewPipelineMetrics создаёт новый экземпляр метрик пайплайна.
func NewPipelineMetrics() *PipelineMetrics {
	return newPipelineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPipelineMetricsWithRegisterer(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PipelineMetrics{
		checkoutsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_pipeline_checkouts_total",
			Help: "Total number of checkout operations started",
		}),
		transitionsAccepted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_pipeline_transitions_total",
			Help: "Total number of accepted order status transitions",
		}, []string{"from", "to"}),
		transitionsRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_pipeline_transitions_rejected_total",
			Help: "Total number of rejected (illegal) transition attempts",
		}),
		paymentAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_pipeline_payment_attempts_total",
			Help: "Total number of payment attempts grouped by result",
		}, []string{"result"}),
		escrowDispositions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_pipeline_escrow_dispositions_total",
			Help: "Total number of escrow hold dispositions grouped by kind",
		}, []string{"disposition"}),
		disputesOpened: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_pipeline_disputes_opened_total",
			Help: "Total number of disputes opened",
		}),
		disputesResolved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_pipeline_disputes_resolved_total",
			Help: "Total number of disputes resolved",
		}),
		scheduleFired: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_pipeline_schedule_fired_total",
			Help: "Total number of fired schedule entries grouped by result",
		}, []string{"result"}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "checkout_pipeline_step_duration_seconds",
			Help:    "Duration of individual pipeline steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_pipeline_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "checkout_pipeline_active_orders",
			Help: "Number of orders currently in non-terminal statuses",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutStarted увеличивает счётчик чекаутов.
func (m *PipelineMetrics) RecordCheckoutStarted() {
	m.checkoutsStarted.Inc()
}

// RecordTransition фиксирует принятый переход статуса.
func (m *PipelineMetrics) RecordTransition(from, to string) {
	m.transitionsAccepted.WithLabelValues(from, to).Inc()
}

// RecordTransitionRejected фиксирует отклонённую попытку перехода.
func (m *PipelineMetrics) RecordTransitionRejected() {
	m.transitionsRejected.Inc()
}

// RecordPaymentAttempt фиксирует попытку платежа с результатом.
func (m *PipelineMetrics) RecordPaymentAttempt(result string) {
	m.paymentAttempts.WithLabelValues(result).Inc()
}

// RecordEscrowDisposition фиксирует диспозицию эскроу-холда.
func (m *PipelineMetrics) RecordEscrowDisposition(disposition string) {
	m.escrowDispositions.WithLabelValues(disposition).Inc()
}

// RecordDisputeOpened увеличивает счётчик открытых споров.
func (m *PipelineMetrics) RecordDisputeOpened() {
	m.disputesOpened.Inc()
}

// RecordDisputeResolved увеличивает счётчик разрешённых споров.
func (m *PipelineMetrics) RecordDisputeResolved() {
	m.disputesResolved.Inc()
}

// RecordScheduleFired фиксирует срабатывание отложенного перехода.
func (m *PipelineMetrics) RecordScheduleFired(result string) {
	m.scheduleFired.WithLabelValues(result).Inc()
}

// RecordStepDuration записывает время выполнения шага пайплайна.
func (m *PipelineMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *PipelineMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordOrderOpened увеличивает gauge активных заказов.
func (m *PipelineMetrics) RecordOrderOpened() {
	m.activeOrders.Inc()
}

// RecordOrderClosed уменьшает gauge активных заказов.
func (m *PipelineMetrics) RecordOrderClosed() {
	m.activeOrders.Dec()
}
