// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clientrpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
	"github.com/ManuGH/clientauth/internal/log"
)

const (
	wsReadTimeout       = 60 * time.Second
	wsWriteTimeout      = 10 * time.Second
	wsHeartbeatInterval = 30 * time.Second
	wsMaxMessageLen     = 64 << 10
	wsBuffer            = 16
)

// NotificationStream is a ports.NotificationSource backed by the client's
// websocket push endpoint. Each Subscribe opens its own connection.
type NotificationStream struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger zerolog.Logger
}

func NewNotificationStream(url string, header http.Header) *NotificationStream {
	return &NotificationStream{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: log.WithComponent("clientrpc.ws"),
	}
}

// Subscribe implements ports.NotificationSource.
func (s *NotificationStream) Subscribe(ctx context.Context) (ports.Subscription, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}

	sub := &wsSubscription{
		conn:   conn,
		ch:     make(chan ports.Notification, wsBuffer),
		closed: make(chan struct{}),
		logger: s.logger,
	}
	conn.SetReadLimit(wsMaxMessageLen)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	sub.wg.Add(2)
	go sub.readLoop()
	go sub.heartbeat()
	return sub, nil
}

type wsSubscription struct {
	conn       *websocket.Conn
	ch         chan ports.Notification
	closed     chan struct{}
	closeOnce  sync.Once
	writeMutex sync.Mutex
	wg         sync.WaitGroup
	logger     zerolog.Logger
}

func (s *wsSubscription) C() <-chan ports.Notification {
	return s.ch
}

// Close tears the connection down and waits for the reader to finish.
func (s *wsSubscription) Close() error {
	s.shutdown()
	s.wg.Wait()
	return nil
}

func (s *wsSubscription) shutdown() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeMutex.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteTimeout))
		s.writeMutex.Unlock()
		_ = s.conn.Close()
	})
}

func (s *wsSubscription) readLoop() {
	defer s.wg.Done()
	defer close(s.ch)
	defer s.shutdown()

	for {
		var n ports.Notification
		if err := s.conn.ReadJSON(&n); err != nil {
			if !isExpectedClose(err) {
				select {
				case <-s.closed:
				default:
					s.logger.Warn().Err(err).
						Str(log.FieldEvent, "clientrpc.ws_read_failed").
						Msg("notification stream ended")
				}
			}
			return
		}
		if n.At.IsZero() {
			n.At = time.Now()
		}
		select {
		case s.ch <- n:
		case <-s.closed:
			return
		}
	}
}

func (s *wsSubscription) heartbeat() {
	defer s.wg.Done()
	ticker := time.NewTicker(wsHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.writeMutex.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteTimeout))
			s.writeMutex.Unlock()
			if err != nil {
				s.shutdown()
				return
			}
		}
	}
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent)
}

var _ ports.NotificationSource = (*NotificationStream)(nil)
