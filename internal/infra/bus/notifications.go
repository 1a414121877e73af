// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"time"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
)

// TopicClientState carries raw client state pushes.
const TopicClientState = "client.state"

// NotificationSource exposes one topic of a notification bus as a ports.NotificationSource.
// Pushes that arrive over HTTP are published here and consumed by the event bridge.
type NotificationSource struct {
	bus   *MemoryBus[ports.Notification]
	topic string
	now   func() time.Time
}

func NewNotificationSource(b *MemoryBus[ports.Notification], topic string) *NotificationSource {
	if topic == "" {
		topic = TopicClientState
	}
	return &NotificationSource{bus: b, topic: topic, now: time.Now}
}

// Subscribe implements ports.NotificationSource.
func (s *NotificationSource) Subscribe(ctx context.Context) (ports.Subscription, error) {
	return s.bus.Subscribe(ctx, s.topic)
}

// Push publishes a raw state spelling. A zero At is stamped with the current time.
func (s *NotificationSource) Push(ctx context.Context, n ports.Notification) error {
	if n.At.IsZero() {
		n.At = s.now()
	}
	return s.bus.Publish(ctx, s.topic, n)
}

var _ ports.NotificationSource = (*NotificationSource)(nil)
