package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository/memory"
	"github.com/medimeet/telehealth-api/pkg/metrics"
)

var testMetrics = metrics.New("worker_test")

type fakeBroker struct {
	published []string
	err       error
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, channel)
	return nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBroker) Close() error { return nil }

type recordingNotifier struct {
	sent []string
}

func (r *recordingNotifier) Send(ctx context.Context, to, subject, body string) error {
	r.sent = append(r.sent, to)
	return nil
}

func seedEvent(store *memory.Store, eventType string) {
	payload, _ := json.Marshal(model.AppointmentEventPayload{
		PatientEmail: "patient@example.com",
		DoctorEmail:  "doctor@example.com",
	})
	store.Outbox().Create(context.Background(), &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	})
}

func TestProcessBatchPublishesAndNotifies(t *testing.T) {
	store := memory.NewStore()
	seedEvent(store, model.EventAppointmentBooked)
	broker := &fakeBroker{}
	notifier := &recordingNotifier{}

	p := NewOutboxProcessor(store, broker, notifier, OutboxProcessorConfig{}, zerolog.Nop(), testMetrics)
	require.NoError(t, p.processBatch(context.Background()))

	assert.Equal(t, []string{model.EventAppointmentBooked}, broker.published)
	assert.Equal(t, []string{"patient@example.com", "doctor@example.com"}, notifier.sent)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
}

func TestProcessBatchMarksFailedOnBrokerError(t *testing.T) {
	store := memory.NewStore()
	seedEvent(store, model.EventAppointmentCancelled)
	broker := &fakeBroker{err: errors.New("redis down")}

	p := NewOutboxProcessor(store, broker, &recordingNotifier{}, OutboxProcessorConfig{}, zerolog.Nop(), testMetrics)
	require.NoError(t, p.processBatch(context.Background()))

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "redis down")
}

func TestProcessBatchSkipsProcessedEvents(t *testing.T) {
	store := memory.NewStore()
	seedEvent(store, model.EventAppointmentCompleted)
	broker := &fakeBroker{}

	p := NewOutboxProcessor(store, broker, &recordingNotifier{}, OutboxProcessorConfig{}, zerolog.Nop(), testMetrics)
	require.NoError(t, p.processBatch(context.Background()))
	require.NoError(t, p.processBatch(context.Background()))

	assert.Len(t, broker.published, 1, "a processed event is not republished")
}
