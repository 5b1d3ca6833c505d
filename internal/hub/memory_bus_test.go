package hub

import (
	"context"
	"sync"
)

// memoryBus is an in-process Bus for tests. Delivery order per channel
// matches publish order, same as the Redis channel it stands in for.
type memoryBus struct {
	mu   sync.Mutex
	subs map[string][]*memorySub
}

func newMemoryBus() *memoryBus {
	return &memoryBus{subs: make(map[string][]*memorySub)}
}

func (b *memoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[channel] {
		sub.ch <- payload
	}
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context, channel string) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &memorySub{bus: b, channel: channel, ch: make(chan []byte, 256)}
	b.subs[channel] = append(b.subs[channel], sub)
	return sub
}

type memorySub struct {
	bus     *memoryBus
	channel string
	ch      chan []byte
	once    sync.Once
}

func (s *memorySub) Messages() <-chan []byte { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		subs := s.bus.subs[s.channel]
		for i, sub := range subs {
			if sub == s {
				s.bus.subs[s.channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(s.ch)
		s.bus.mu.Unlock()
	})
	return nil
}
