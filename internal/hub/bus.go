package hub

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/chatstealth/server-go/internal/redis"
)

// Bus carries serialized hub events between publishers and per-session
// subscribers. The production implementation is Redis pub/sub; tests use an
// in-process bus.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) Subscription
}

// Subscription yields payloads published to one channel. Messages is closed
// when the subscription ends.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

type RedisBus struct {
	client *redisclient.Client
}

func NewRedisBus(client *redisclient.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string) Subscription {
	pubsub := b.client.Subscribe(ctx, channel)
	sub := &redisSubscription{
		pubsub:   pubsub,
		messages: make(chan []byte),
	}
	go sub.run(ctx)
	return sub
}

type redisSubscription struct {
	pubsub   *goredis.PubSub
	messages chan []byte
}

func (s *redisSubscription) run(ctx context.Context) {
	defer close(s.messages)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.messages <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.messages
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
