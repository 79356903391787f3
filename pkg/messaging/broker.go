package messaging

import "context"

// Broker is the transport the outbox processor publishes appointment events
// to. Downstream consumers (notification fan-out, analytics) subscribe on
// the event-type channel.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// NopBroker discards everything. Used when Redis is not configured.
type NopBroker struct{}

func (NopBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return nil
}

func (NopBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (NopBroker) Close() error { return nil }
