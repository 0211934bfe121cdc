package producer

import (
	"context"
	"time"

	"go-payroll/internal/messaging/kafka"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const batchSize = 50

// Run drains the payroll outbox on a fixed interval until ctx is cancelled.
// One immediate drain happens on startup so restarts do not sit on a backlog
// for a full tick.
func Run(
	ctx context.Context,
	repo kafka.OutboxRepository,
	writer *kafkago.Writer,
	logger *zap.Logger,
	pollInterval time.Duration,
) {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}

	log := logger.Named("kafka.producer")
	log.Info("outbox producer started", zap.Duration("poll_interval", pollInterval))

	drain(ctx, repo, writer, log)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox producer stopped")
			return
		case <-ticker.C:
			drain(ctx, repo, writer, log)
		}
	}
}

// drain keeps pulling full batches until the due set is exhausted, so a burst
// of transitions clears in one tick instead of one batch per tick.
func drain(ctx context.Context, repo kafka.OutboxRepository, writer *kafkago.Writer, log *zap.Logger) {
	for {
		events, err := repo.ListPending(ctx, batchSize)
		if err != nil {
			log.Error("list pending outbox events failed", zap.Error(err))
			return
		}
		if len(events) == 0 {
			return
		}

		sent := 0
		for _, event := range events {
			if err := publish(ctx, writer, event); err != nil {
				log.Error("publish outbox event failed",
					zap.String("outbox_id", event.ID),
					zap.String("event_type", event.EventType),
					zap.String("topic", event.Topic),
					zap.Int("attempts", event.Attempts),
					zap.Error(err),
				)
				_ = repo.MarkFailed(ctx, event.ID, err.Error())
				continue
			}
			if err := repo.MarkSent(ctx, event.ID); err != nil {
				log.Error("mark outbox sent failed", zap.String("outbox_id", event.ID), zap.Error(err))
				continue
			}
			sent++
		}

		log.Info("outbox batch drained",
			zap.Int("due", len(events)),
			zap.Int("sent", sent),
		)

		if len(events) < batchSize {
			return
		}
	}
}

func publish(ctx context.Context, writer *kafkago.Writer, event kafka.OutboxEvent) error {
	msg := kafkago.Message{
		Topic: event.Topic,
		// Keyed by run id so every event of one run lands on one partition
		// in order.
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
			{Key: "request_id", Value: []byte(event.RequestID)},
		},
	}
	return writer.WriteMessages(ctx, msg)
}
