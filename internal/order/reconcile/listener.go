package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-checkout-service/internal/order"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const maxAttempts = 3

// Consumer is the subset of broker.KafkaConsumer the listener needs.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Listener replays ChargeUnrecorded events into the order ledger.
type Listener struct {
	consumer Consumer
	uc       order.UseCase
	logger   logger.ZapLogger
	backoff  time.Duration
}

func NewListener(consumer Consumer, uc order.UseCase, log logger.ZapLogger) *Listener {
	return &Listener{
		consumer: consumer,
		uc:       uc,
		logger:   log,
		backoff:  time.Second,
	}
}

func (l *Listener) Start(ctx context.Context) {
	l.logger.Info("Starting reconciliation listener")
	for {
		msg, err := l.consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("Stopping reconciliation listener")
				return
			}
			l.logger.Error("Failed to fetch kafka message", zap.Error(err))
			if !l.wait(ctx, l.backoff) {
				return
			}
			continue
		}

		l.processMessage(ctx, msg.Value)

		// Committed after exhausted retries too. The reconciliation_failed
		// log line carries the transaction id.
		if err := l.consumer.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			l.logger.Error("Failed to commit kafka offset", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (l *Listener) processMessage(ctx context.Context, value []byte) {
	var ev order.ChargeUnrecorded
	if err := json.Unmarshal(value, &ev); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}
	if ev.EventType != order.EventChargeUnrecorded {
		return
	}

	log := l.logger.With(zap.String("transaction_id", ev.TransactionID), zap.String("event_id", ev.EventID))

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var inserted bool
		inserted, err = l.uc.RecordCharge(ctx, &ev)
		if err == nil {
			if !inserted {
				log.Info("charge already recorded")
			}
			return
		}
		log.Warn("reconciliation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < maxAttempts && !l.wait(ctx, l.backoff*time.Duration(attempt)) {
			break
		}
	}
	log.Error("reconciliation failed",
		zap.String("alert", "reconciliation_failed"),
		zap.Error(err),
	)
}

func (l *Listener) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
