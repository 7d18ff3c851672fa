package worker

import (
	"context"

	"closet-service/internal/broker"
	"closet-service/internal/models"
	"closet-service/internal/util"

	"go.uber.org/zap"
)

// MessageSource is the read side of a topic.
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// LedgerEventSink receives decoded ledger events.
type LedgerEventSink interface {
	HandleLedgerEvent(ctx context.Context, event *models.LedgerEvent) error
}

// AuditWorker feeds ledger events from the broker into the audit trail
type AuditWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer MessageSource, sink LedgerEventSink) *AuditWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnLedgerEvent(sink.HandleLedgerEvent)

	return &AuditWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes until ctx is cancelled
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker...")
	return w.consumer.Close()
}
