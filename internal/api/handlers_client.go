// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/bridge"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
	"github.com/ManuGH/clientauth/internal/log"
)

const (
	maxNotificationBody = 4 << 10
	streamWriteWait     = 10 * time.Second
	streamPingPeriod    = 30 * time.Second
)

type stateResponse struct {
	State model.ClientState `json:"state"`
	At    time.Time         `json:"at,omitempty"`
}

func (s *Server) handleClientState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{State: s.deps.Auth.CurrentClientState()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresher == nil {
		writeProblem(w, r, http.StatusNotImplemented, "refresh-unsupported", "Refresh Unsupported", "NO_QUERIER", "", nil)
		return
	}
	state, err := s.deps.Refresher.Refresh(r.Context())
	switch {
	case errors.Is(err, bridge.ErrNoQuerier):
		writeProblem(w, r, http.StatusNotImplemented, "refresh-unsupported", "Refresh Unsupported", "NO_QUERIER", "", nil)
		return
	case err != nil:
		logger := log.WithContext(r.Context(), s.logger)
		logger.Warn().Err(err).Msg("client state refresh failed")
		writeProblem(w, r, http.StatusBadGateway, "client-unreachable", "Client Unreachable", "REFRESH_FAILED", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: state})
}

func (s *Server) handleForceClose(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Auth.ForceClose(r.Context()); err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Warn().Err(err).Msg("force close failed")
		writeProblem(w, r, http.StatusBadGateway, "client-unreachable", "Client Unreachable", "FORCE_CLOSE_FAILED", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotification accepts a pushed state change from clients that deliver
// notifications by webhook instead of the websocket stream.
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	var n ports.Notification
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotificationBody))
	if err := dec.Decode(&n); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid-request", "Invalid Request", "INVALID_BODY", err.Error(), nil)
		return
	}
	if _, ok := model.ParseClientState(n.State); !ok {
		writeProblem(w, r, http.StatusUnprocessableEntity, "unknown-state", "Unknown Client State", "UNKNOWN_STATE", n.State, nil)
		return
	}
	if err := s.deps.Notifications.Push(r.Context(), n); err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("notification push failed")
		writeProblem(w, r, http.StatusServiceUnavailable, "notifications-unavailable", "Notifications Unavailable", "PUSH_FAILED", "", nil)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleStateStream pushes the current client state and every later change
// over a websocket. Slow readers only see the latest state.
func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer func() { _ = conn.Close() }()

	logger := log.WithContext(r.Context(), s.logger)

	latest := make(chan stateResponse, 1)
	offer := func(st model.ClientState) {
		msg := stateResponse{State: st, At: time.Now().UTC()}
		for {
			select {
			case latest <- msg:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	}
	unsubscribe := s.deps.Auth.SubscribeToClientState(offer)
	defer unsubscribe()
	offer(s.deps.Auth.CurrentClientState())

	// Reader drains control frames and notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case msg := <-latest:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("state stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
