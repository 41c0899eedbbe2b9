package kafka

import (
	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// StockAlertSink публикует смену складских алертов в topic пайплайна.
// Ошибка публикации только логируется: алерт не откатывает мутацию стока.
type StockAlertSink struct {
	producer *Producer
	logger   *log.Entry
}

// NewStockAlertSink создаёт Kafka-приёмник складских алертов.
func NewStockAlertSink(producer *Producer, logger *log.Entry) *StockAlertSink {
	if logger == nil {
		logger = log.WithField("component", "stock-alert-sink")
	}
	return &StockAlertSink{producer: producer, logger: logger}
}

// StockAlertChanged публикует событие включения или снятия алерта.
func (s *StockAlertSink) StockAlertChanged(record domain.InventoryRecord, alert domain.StockAlert, active bool) {
	event := NewPipelineEvent(EventTypeStockAlert, "", map[string]interface{}{
		"product_id": record.ProductID,
		"alert":      string(alert),
		"active":     active,
		"available":  record.Available(),
		"current":    record.CurrentStock,
	})

	if err := s.producer.PublishEvent(TopicPipelineEvents, record.ProductID, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"product_id": record.ProductID,
			"alert":      string(alert),
		}).Warn("failed to publish stock alert")
	}
}
