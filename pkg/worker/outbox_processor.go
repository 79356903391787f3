package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medimeet/telehealth-api/internal/email"
	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository"
	"github.com/medimeet/telehealth-api/pkg/messaging"
	"github.com/medimeet/telehealth-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// OutboxProcessor drains the outbox table: each pending event is published
// to the broker and fanned out as email to the appointment parties. Both
// deliveries are best-effort; the state change the event describes has
// already committed.
type OutboxProcessor struct {
	store    repository.Store
	broker   messaging.Broker
	notifier email.Notifier
	config   OutboxProcessorConfig
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func NewOutboxProcessor(
	store repository.Store,
	broker messaging.Broker,
	notifier email.Notifier,
	config OutboxProcessorConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}

	return &OutboxProcessor{
		store:    store,
		broker:   broker,
		notifier: notifier,
		config:   config,
		logger:   logger,
		metrics:  m,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Msg("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to process outbox batch")
			}
		}
	}
}

func (p *OutboxProcessor) processBatch(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	// The batch is claimed and resolved inside one transaction so that
	// FOR UPDATE SKIP LOCKED keeps concurrent processors off the same rows.
	return p.store.WithTx(ctx, func(tx repository.Store) error {
		events, err := tx.Outbox().GetPendingWithLock(ctx, p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}

		for _, event := range events {
			if err := p.publish(ctx, event); err != nil {
				p.metrics.OutboxEventsFailed.Inc()
				errMsg := err.Error()
				if markErr := tx.Outbox().MarkFailed(ctx, event.ID, errMsg); markErr != nil {
					p.logger.Error().Err(markErr).Str("event_id", event.ID.String()).Msg("failed to mark event failed")
				}
				continue
			}

			p.metrics.OutboxEventsProcessed.Inc()
			if err := tx.Outbox().MarkProcessed(ctx, event.ID); err != nil {
				p.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to mark event processed")
			}
		}
		return nil
	})
}

func (p *OutboxProcessor) publish(ctx context.Context, event *model.OutboxEvent) error {
	if err := p.broker.Publish(ctx, event.EventType, event.Payload); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	// Email failures are logged, not retried: the broker publish already
	// succeeded and consumers can re-notify from the stream.
	if err := p.notify(ctx, event); err != nil {
		p.logger.Warn().Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", event.EventType).
			Msg("failed to send notification email")
	}
	return nil
}

func (p *OutboxProcessor) notify(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.AppointmentEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode event payload: %w", err)
	}

	var subject, body string
	switch event.EventType {
	case model.EventAppointmentBooked:
		subject = "Appointment confirmed"
		body = fmt.Sprintf("Your appointment on %s has been booked.",
			payload.StartTime.Format("Monday, January 2 at 3:04 PM"))
	case model.EventAppointmentCancelled:
		subject = "Appointment cancelled"
		body = fmt.Sprintf("The appointment on %s has been cancelled and the credits refunded.",
			payload.StartTime.Format("Monday, January 2 at 3:04 PM"))
	case model.EventAppointmentCompleted:
		subject = "Appointment completed"
		body = fmt.Sprintf("The appointment on %s has been marked completed.",
			payload.StartTime.Format("Monday, January 2 at 3:04 PM"))
	default:
		return nil
	}

	for _, to := range []string{payload.PatientEmail, payload.DoctorEmail} {
		if to == "" {
			continue
		}
		if err := p.notifier.Send(ctx, to, subject, body); err != nil {
			return err
		}
	}
	return nil
}
