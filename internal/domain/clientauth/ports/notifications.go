// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"
	"time"
)

// Notification is a raw state push from the external client.
// State carries the wire spelling and is normalized by the event bridge.
type Notification struct {
	State string    `json:"state"`
	At    time.Time `json:"at,omitempty"`
}

// NotificationSource is the one-directional push channel from the external client.
type NotificationSource interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription delivers notifications until Close is called.
// C is closed once the subscription has ended.
type Subscription interface {
	C() <-chan Notification
	Close() error
}
