package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// Config задаёт параметры цикла платёжных попыток.
type Config struct {
	// MaxRetries — бюджет попыток на один вызов Execute.
	MaxRetries int
	// RetryDelay — базовая задержка; фактическая пауза перед попыткой n равна RetryDelay*n.
	RetryDelay time.Duration
	// AttemptTimeout — таймаут одного вызова шлюза.
	AttemptTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		RetryDelay:     100 * time.Millisecond,
		AttemptTimeout: 30 * time.Second,
	}
}

// Option настраивает Coordinator.
type Option func(*Coordinator)

// WithLogger задаёт logger координатора.
func WithLogger(logger *log.Entry) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithBreaker включает circuit breaker на вызовах шлюза.
func WithBreaker(breaker *CircuitBreaker) Option {
	return func(c *Coordinator) {
		c.breaker = breaker
	}
}

// Coordinator ведёт жизненный цикл логического платежа: один платёж на заказ,
// стабильный ID между повторами, уникальный gateway reference на каждую
// попытку. Координатор, а не шлюз, является источником истины об идемпотентности.
type Coordinator struct {
	payments domain.PaymentRepository
	gateway  domain.PaymentGateway
	breaker  *CircuitBreaker
	config   Config
	logger   *log.Entry
}

// NewCoordinator создаёт платёжный координатор.
func NewCoordinator(payments domain.PaymentRepository, gateway domain.PaymentGateway, config Config, options ...Option) *Coordinator {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}

	c := &Coordinator{
		payments: payments,
		gateway:  gateway,
		config:   config,
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = log.New().WithField("component", "payment-coordinator")
	}
	return c
}

// Begin заводит логический платёж под заказ. ID платежа стабилен на все
// последующие повторы — новые Execute продолжают нумерацию попыток.
func (c *Coordinator) Begin(orderID, buyerID string, amountMinor int64, currency string) (domain.Payment, error) {
	payment := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		BuyerID:     buyerID,
		AmountMinor: amountMinor,
		Currency:    currency,
		Outcome:     domain.PaymentOutcomePending,
		CreatedAt:   time.Now().UTC(),
	}
	if errs := payment.Validate(); len(errs) != 0 {
		return domain.Payment{}, errs[0]
	}

	if err := c.payments.CreatePayment(payment); err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// Execute прогоняет цикл попыток для платежа. Успешный платёж липкий:
// повторный Execute ничего не списывает и возвращает сохранённый результат.
func (c *Coordinator) Execute(ctx context.Context, paymentID string) (domain.Payment, error) {
	payment, err := c.payments.GetPayment(paymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	if payment.Outcome == domain.PaymentOutcomeSuccess {
		c.logger.WithFields(log.Fields{
			"payment_id": payment.ID,
			"order_id":   payment.OrderID,
		}).Debug("payment already succeeded, skipping charge")
		return payment, nil
	}

	var lastErr *domain.PaymentError

	for budget := 1; budget <= c.config.MaxRetries; budget++ {
		if budget > 1 {
			delay := c.config.RetryDelay * time.Duration(budget-1)
			if delay > 0 {
				select {
				case <-ctx.Done():
					return c.finish(payment, domain.PaymentOutcomeCancelled, lastErr, ctx.Err())
				case <-time.After(delay):
				}
			}
		}

		seq := payment.Attempts + 1
		ref := domain.GatewayReference(payment.ID, seq)

		txnID, chargeErr := c.charge(ctx, ref, payment)

		attempt := domain.PaymentAttempt{
			PaymentID:  payment.ID,
			Seq:        seq,
			GatewayRef: ref,
			TxnID:      txnID,
			Outcome:    domain.PaymentOutcomeSuccess,
			CreatedAt:  time.Now().UTC(),
		}
		payment.Attempts = seq

		if chargeErr == nil {
			if err := c.payments.AppendAttempt(attempt); err != nil {
				return domain.Payment{}, err
			}
			c.logger.WithFields(log.Fields{
				"payment_id":  payment.ID,
				"order_id":    payment.OrderID,
				"gateway_ref": ref,
				"attempt":     seq,
			}).Info("payment charge succeeded")
			return c.finish(payment, domain.PaymentOutcomeSuccess, nil, nil)
		}

		lastErr = domain.ClassifyPaymentError(chargeErr)
		attempt.Outcome = domain.PaymentOutcomeFailed
		attempt.ErrorKind = lastErr.Kind
		if lastErr.Kind == domain.PaymentErrTimeout {
			attempt.Outcome = domain.PaymentOutcomeTimeout
		}
		if err := c.payments.AppendAttempt(attempt); err != nil {
			return domain.Payment{}, err
		}

		c.logger.WithFields(log.Fields{
			"payment_id":  payment.ID,
			"order_id":    payment.OrderID,
			"gateway_ref": ref,
			"attempt":     seq,
			"error_kind":  lastErr.Kind,
		}).Warn("payment charge failed")

		if ctx.Err() != nil {
			return c.finish(payment, domain.PaymentOutcomeCancelled, lastErr, ctx.Err())
		}
		if !lastErr.Retryable() {
			return c.finish(payment, domain.PaymentOutcomeFailed, lastErr, lastErr)
		}
	}

	outcome := domain.PaymentOutcomeFailed
	if lastErr != nil && lastErr.Kind == domain.PaymentErrTimeout {
		outcome = domain.PaymentOutcomeTimeout
	}
	return c.finish(payment, outcome, lastErr, lastErr)
}

// Charge — Begin + Execute одним вызовом для первичного чекаута.
func (c *Coordinator) Charge(ctx context.Context, orderID, buyerID string, amountMinor int64, currency string) (domain.Payment, error) {
	payment, err := c.Begin(orderID, buyerID, amountMinor, currency)
	if err != nil {
		return domain.Payment{}, err
	}
	return c.Execute(ctx, payment.ID)
}

// Get возвращает логический платёж.
func (c *Coordinator) Get(paymentID string) (domain.Payment, error) {
	return c.payments.GetPayment(paymentID)
}

// Attempts возвращает историю попыток платежа в порядке номеров.
func (c *Coordinator) Attempts(paymentID string) ([]domain.PaymentAttempt, error) {
	return c.payments.ListAttempts(paymentID)
}

// charge выполняет один вызов шлюза под таймаутом попытки.
func (c *Coordinator) charge(ctx context.Context, ref string, payment domain.Payment) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.AttemptTimeout)
	defer cancel()

	var txnID string
	call := func() error {
		var err error
		txnID, err = c.gateway.Charge(attemptCtx, ref, payment.AmountMinor, payment.Currency, payment.BuyerID)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute("charge", call)
	} else {
		err = call()
	}

	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return "", domain.NewPaymentError(domain.PaymentErrTimeout, "gateway call timed out")
	}
	return txnID, err
}

func (c *Coordinator) finish(payment domain.Payment, outcome domain.PaymentOutcome, lastErr *domain.PaymentError, resultErr error) (domain.Payment, error) {
	payment.Outcome = outcome
	if lastErr != nil {
		payment.LastErrorKind = lastErr.Kind
	}
	payment.UpdatedAt = time.Now().UTC()

	if err := c.payments.SavePayment(payment); err != nil {
		return domain.Payment{}, err
	}
	if resultErr != nil {
		return payment, resultErr
	}
	return payment, nil
}
