package events

import (
	"context"
	"strings"

	"github.com/tastebook/apiserver/config"
)

// ActivityChannel carries recipe mutation events.
const ActivityChannel = "recipe.activity"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Bus wraps a backend with a stable API.
type Bus struct {
	backend Backend
}

// New constructs a Bus for the provided backend.
func New(backend Backend) *Bus {
	return &Bus{backend: backend}
}

// FromConfig selects a backend by configuration presence: RabbitMQ when
// a broker URL is set, Google Pub/Sub when a project id is set,
// otherwise a disabled backend that drops everything.
func FromConfig(ctx context.Context, cfg config.EventsConfig) (*Bus, error) {
	switch {
	case strings.TrimSpace(cfg.RabbitMQ.URL) != "":
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	case strings.TrimSpace(cfg.PubSub.ProjectID) != "":
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	default:
		return New(disabledBackend{}), nil
	}
}

// Publish sends a message to the named channel.
func (b *Bus) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return b.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel until the context
// is canceled.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return b.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}

// disabledBackend stands in when no broker is configured.
type disabledBackend struct{}

func (disabledBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return "", nil
}

func (disabledBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (disabledBackend) Close() error {
	return nil
}
