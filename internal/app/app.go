package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/KachiAlex/ojawaecommerce-sub000/internal/health"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/httpapi"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/messaging/kafka"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/metrics"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/dispute"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/escrow"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/idempotency"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/inventory"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/outbox"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/payment"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/saga"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/scheduler"
	redisstore "github.com/KachiAlex/ojawaecommerce-sub000/internal/storage/redis"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/version"
)

func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close(logger)

	// Kafka producer (опционально)
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)

	// Redis guard доступности (опционально)
	var redisClient *goredis.Client
	var stockOptions []inventory.Option
	if cfg.RedisAddr != "" {
		redisClient = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			logger.WithError(pingErr).Warn("redis is not reachable, continuing without availability guard")
			_ = redisClient.Close()
			redisClient = nil
		} else {
			stockOptions = append(stockOptions, inventory.WithAvailabilityGuard(redisstore.NewStockCache(redisClient)))
			logger.WithField("addr", cfg.RedisAddr).Info("redis availability guard initialized")
		}
	}

	pipelineMetrics := metrics.NewPipelineMetrics()

	var alertSink inventory.AlertSink
	if kafkaProducer != nil {
		alertSink = kafka.NewStockAlertSink(kafkaProducer, log.WithField("component", "stock-alert-sink"))
	}

	stock := inventory.NewManager(deps.Inventory, alertSink, log.WithField("component", "inventory"), stockOptions...)
	holds := escrow.NewLedger(deps.Escrow, log.WithField("component", "escrow"))

	// Шлюз-заглушка без сценария подтверждает каждое списание;
	// боевой PSP-клиент встаёт на его место через domain.PaymentGateway.
	gateway := payment.NewMockGateway()
	payments := payment.NewCoordinator(deps.Payments, gateway, payment.DefaultConfig(),
		payment.WithLogger(log.WithField("component", "payment")),
		payment.WithBreaker(payment.NewCircuitBreaker(5, 30*time.Second, log.WithField("component", "payment-breaker"))),
	)

	machineOptions := []saga.Option{
		saga.WithLogger(log.WithField("component", "order-machine")),
		saga.WithMetrics(pipelineMetrics),
		saga.WithConfig(saga.Config{
			AutoAdvanceDelay: cfg.AutoAdvanceDelay,
			ConfirmTimeout:   cfg.ConfirmTimeout,
		}),
	}
	if kafkaProducer != nil {
		machineOptions = append(machineOptions, saga.WithKafkaProducer(kafkaProducer))
	}
	machine := saga.NewMachine(
		deps.Orders,
		deps.History,
		deps.Schedule,
		deps.Outbox,
		stock,
		holds,
		payments,
		machineOptions...,
	)

	disputes := dispute.NewManager(deps.Disputes, machine,
		dispute.WithLogger(log.WithField("component", "dispute")),
		dispute.WithMetrics(pipelineMetrics),
	)

	// Фоновые воркеры живут до отмены ctx.
	scheduleWorker := scheduler.NewWorker(deps.Schedule, machine,
		scheduler.WithLogger(log.WithField("component", "scheduler")),
		scheduler.WithMetrics(pipelineMetrics),
	)
	go scheduleWorker.Run(ctx)

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, cfg.OutboxTopic)
		dlq := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
		outboxWorker := outbox.NewWorker(deps.Outbox, publisher,
			outbox.WithLogger(log.WithField("component", "outbox")),
			outbox.WithDLQPublisher(dlq),
		)
		go outboxWorker.Run(ctx)
	} else {
		logger.Info("kafka is not configured, outbox worker is disabled")
	}

	cleanupWorker := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(log.WithField("component", "idempotency-cleanup")),
	)
	go cleanupWorker.Run(ctx)

	handler := httpapi.NewHandler(machine, disputes, payments, stock, holds, deps.Idempotency,
		httpapi.WithLogger(log.WithField("component", "httpapi")),
		httpapi.WithIdempotencyTTL(cfg.IdempotencyTTL),
	)
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: httpapi.NewRouter(handler)}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if store := deps.Store(); store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", 2*time.Second, store.Ping))
	}
	if redisClient != nil {
		healthHandler.RegisterChecker("redis", healthcheck.NewPingChecker("redis", 2*time.Second, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(deps.Outbox, 100, 1000))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		closeRedis(redisClient, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		closeRedis(redisClient, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает служебный HTTP-сервер: метрики и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

// closeRedis закрывает Redis клиент если он не nil.
func closeRedis(client *goredis.Client, logger *log.Entry) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.WithError(err).Warn("failed to close redis client")
	}
}
