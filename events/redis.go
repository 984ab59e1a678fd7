package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel events travel on.
const DefaultChannel = "ble2led:events"

// Bus publishes and subscribes events over Redis pub/sub. Delivery is
// at most once.
type Bus struct {
	rdb     *redis.Client
	channel string
}

// NewBus creates a bus on channel, DefaultChannel if empty.
func NewBus(opts *redis.Options, channel string) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{rdb: redis.NewClient(opts), channel: channel}
}

func (b *Bus) Close() error {
	return b.rdb.Close()
}

func (b *Bus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Publish validates and sends e. It returns the number of subscribers
// that received it.
func (b *Bus) Publish(ctx context.Context, e Event) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	payload, err := e.Encode()
	if err != nil {
		return 0, fmt.Errorf("encoding event: %w", err)
	}
	n, err := b.rdb.Publish(ctx, b.channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publishing to %s: %w", b.channel, err)
	}
	return n, nil
}

// Subscription delivers decoded events. Malformed messages go to
// Errors and are skipped. Both channels are closed once the
// subscription ends.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe starts listening. It returns once Redis confirmed the
// subscription, so nothing published afterwards is missed.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}

	eventsChan := make(chan Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				e, err := Decode([]byte(msg.Payload))
				if err != nil {
					select {
					case errorsChan <- fmt.Errorf("decoding event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}
				select {
				case eventsChan <- e:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{events: eventsChan, errors: errorsChan, cancel: cancel}, nil
}

// RedisSource feeds events from a Bus subscription.
type RedisSource struct {
	bus *Bus
}

func NewRedisSource(bus *Bus) *RedisSource {
	return &RedisSource{bus: bus}
}

func (s *RedisSource) Name() string {
	return "redis:" + s.bus.channel
}

func (s *RedisSource) Run(ctx context.Context, out chan<- Event) error {
	sub, err := s.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()
	slog.Info("Events: listening on redis", "channel", s.bus.channel)

	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("Events: skipping redis message", "error", err)
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !emit(ctx, out, e) {
				return nil
			}
		}
	}
}
