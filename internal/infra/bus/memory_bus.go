// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus is an in-process topic pub/sub.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/clientauth/internal/log"
	"github.com/ManuGH/clientauth/internal/metrics"
)

// ErrClosed is returned by Subscribe after the bus was closed.
var ErrClosed = errors.New("bus closed")

const (
	defaultBuffer = 64
	dropLogEvery  = 100
)

// MemoryBus is a non-durable pub/sub. Delivery is in-order per subscriber and
// blocks the publisher while a subscriber buffer is full, bounded by the publish context.
type MemoryBus[T any] struct {
	mu     sync.RWMutex
	subs   map[string][]*Sub[T]
	buffer int
	closed bool

	dropped atomic.Uint64
}

// Option configures a MemoryBus.
type Option func(*options)

type options struct{ buffer int }

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

func NewMemoryBus[T any](opts ...Option) *MemoryBus[T] {
	o := options{buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryBus[T]{subs: make(map[string][]*Sub[T]), buffer: o.buffer}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// Publish delivers msg to every current subscriber of topic.
func (b *MemoryBus[T]) Publish(ctx context.Context, topic string, msg T) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}

	// The read lock is held across delivery so Close cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- msg:
		case <-s.done:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(topic, reason)
			if n := b.dropped.Add(1); n%dropLogEvery == 1 {
				log.L().Warn().
					Str(log.FieldEvent, "bus.publish_dropped").
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", n).
					Msg("memory bus dropped a message")
			}
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

// Subscribe registers a new subscriber for topic.
func (b *MemoryBus[T]) Subscribe(_ context.Context, topic string) (*Sub[T], error) {
	s := &Sub[T]{b: b, topic: topic, ch: make(chan T, b.buffer), done: make(chan struct{})}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.subs[topic] = append(b.subs[topic], s)
	return s, nil
}

// Subscribers reports the number of live subscribers on topic.
func (b *MemoryBus[T]) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close ends every subscription.
func (b *MemoryBus[T]) Close() error {
	b.mu.Lock()
	b.closed = true
	var all []*Sub[T]
	for _, lst := range b.subs {
		all = append(all, lst...)
	}
	b.mu.Unlock()

	for _, s := range all {
		_ = s.Close()
	}
	return nil
}

// Sub is a single subscription. C is closed after Close.
type Sub[T any] struct {
	b     *MemoryBus[T]
	topic string
	ch    chan T
	done  chan struct{}
	once  sync.Once
}

func (s *Sub[T]) C() <-chan T {
	return s.ch
}

func (s *Sub[T]) Close() error {
	s.once.Do(func() {
		close(s.done) // unblocks a publisher waiting on this subscriber

		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		close(s.ch)
	})
	return nil
}
