package scheduler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/metrics"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultBatchSize    = 100
)

// OrderMachine — операции стейт-машины, нужные планировщику.
type OrderMachine interface {
	Get(orderID string) (domain.Order, error)
	Advance(ctx context.Context, orderID string, target domain.OrderStatus, actor domain.Actor, note string) (domain.Order, error)
}

// WorkerOptions задаёт параметры планировщика.
type WorkerOptions struct {
	Logger       *log.Entry
	Metrics      *metrics.PipelineMetrics
	PollInterval time.Duration
	BatchSize    int
	// Now подменяется в тестах.
	Now func() time.Time
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithMetrics включает сбор метрик срабатываний.
func WithMetrics(pm *metrics.PipelineMetrics) Option {
	return func(opts *WorkerOptions) {
		opts.Metrics = pm
	}
}

// WithPollInterval задаёт частоту опроса расписания.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.PollInterval = interval
	}
}

// WithBatchSize задаёт размер батча записей за цикл.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) {
		opts.BatchSize = batchSize
	}
}

// WithClock задаёт источник времени.
func WithClock(now func() time.Time) Option {
	return func(opts *WorkerOptions) {
		opts.Now = now
	}
}

// Worker применяет созревшие отложенные переходы. Запись срабатывает только
// если заказ всё ещё в исходном статусе; ушедший заказ помечает запись
// skipped без каких-либо эффектов — так отменяются устаревшие таймеры.
type Worker struct {
	schedule     domain.ScheduleRepository
	machine      OrderMachine
	logger       *log.Entry
	metrics      *metrics.PipelineMetrics
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time
}

// NewWorker создаёт планировщик отложенных переходов.
func NewWorker(schedule domain.ScheduleRepository, machine OrderMachine, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval: defaultPollInterval,
		BatchSize:    defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "schedule-worker")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Worker{
		schedule:     schedule,
		machine:      machine,
		logger:       logger,
		metrics:      opts.Metrics,
		pollInterval: opts.PollInterval,
		batchSize:    opts.BatchSize,
		now:          opts.Now,
	}
}

// Run запускает периодический опрос расписания до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.schedule == nil || w.machine == nil {
		w.logger.Warn("schedule worker is disabled: schedule or machine is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один цикл опроса.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	due, err := w.schedule.PullDue(w.now(), w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull due schedule entries")
		return
	}

	for _, entry := range due {
		if ctx.Err() != nil {
			return
		}
		w.fire(ctx, entry)
	}
}

// fire применяет одну запись расписания.
func (w *Worker) fire(ctx context.Context, entry domain.ScheduleEntry) {
	order, err := w.machine.Get(entry.OrderID)
	if err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"schedule_id": entry.ID,
			"order_id":    entry.OrderID,
		}).Warn("order lookup failed, skipping schedule entry")
		w.markSkipped(entry)
		return
	}

	if order.Status != entry.FromStatus {
		w.logger.WithFields(log.Fields{
			"schedule_id": entry.ID,
			"order_id":    entry.OrderID,
			"expected":    entry.FromStatus,
			"actual":      order.Status,
		}).Debug("order left source status, schedule entry is stale")
		w.markSkipped(entry)
		return
	}

	if _, err := w.machine.Advance(ctx, entry.OrderID, entry.ToStatus, domain.SystemActor(), entry.Note); err != nil {
		if domain.IsTransitionError(err) {
			// Гонка с ручным переходом: запись устарела между проверкой и применением.
			w.markSkipped(entry)
			return
		}
		w.logger.WithError(err).WithFields(log.Fields{
			"schedule_id": entry.ID,
			"order_id":    entry.OrderID,
			"to":          entry.ToStatus,
		}).Warn("scheduled transition failed, will retry")
		return
	}

	if err := w.schedule.MarkDone(entry.ID); err != nil {
		w.logger.WithError(err).WithField("schedule_id", entry.ID).Warn("failed to mark schedule entry done")
	}
	if w.metrics != nil {
		w.metrics.RecordScheduleFired("applied")
	}
	w.logger.WithFields(log.Fields{
		"schedule_id": entry.ID,
		"order_id":    entry.OrderID,
		"from":        entry.FromStatus,
		"to":          entry.ToStatus,
	}).Info("scheduled transition applied")
}

func (w *Worker) markSkipped(entry domain.ScheduleEntry) {
	if err := w.schedule.MarkSkipped(entry.ID); err != nil {
		w.logger.WithError(err).WithField("schedule_id", entry.ID).Warn("failed to mark schedule entry skipped")
	}
	if w.metrics != nil {
		w.metrics.RecordScheduleFired("skipped")
	}
}
