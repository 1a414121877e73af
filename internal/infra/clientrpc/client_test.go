// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clientrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/classify"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
	"github.com/ManuGH/clientauth/internal/resilience"
)

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{BaseURL: srv.URL + "/", RequestTimeout: 2 * time.Second, HTTPClient: srv.Client()}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requireRaw(t *testing.T, err error) *ports.RawFailure {
	t.Helper()
	var raw *ports.RawFailure
	require.True(t, errors.As(err, &raw), "expected *ports.RawFailure, got %T: %v", err, err)
	return raw
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "  "})
	assert.Error(t, err)
}

func TestQueryStateNormalizesWireSpelling(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, pathState, r.URL.Path)
		writeJSON(w, http.StatusOK, stateResponse{State: "LoginReady"})
	}))

	st, err := c.QueryState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ClientLoginReady, st)
}

func TestQueryStateRejectsUnknownState(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, stateResponse{State: "Banana"})
	}))

	_, err := c.QueryState(context.Background())
	raw := requireRaw(t, err)
	assert.Equal(t, ports.CodeUnrecognized, raw.Code)
}

func TestChallengeReturnsToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req waitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(300000), req.TimeoutMS)
		writeJSON(w, http.StatusOK, challengeResponse{Token: "03AGdBq2"})
	}))

	tok, err := c.OpenChallenge(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, model.ChallengeToken("03AGdBq2"), tok)
}

func TestSubmitSendsCredentials(t *testing.T) {
	var got loginRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathLogin, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.SubmitCredentials(context.Background(), "acc-1", "hunter2", "tok"))
	assert.Equal(t, loginRequest{Account: "acc-1", Secret: "hunter2", Token: "tok"}, got)
}

func TestFailureBodiesClassify(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		call   func(*Client) error
		kind   model.ErrorKind
	}{
		{
			name: "captcha timeout", status: http.StatusGatewayTimeout, code: "CAPTCHA_TIMEOUT",
			call: func(c *Client) error { _, err := c.OpenChallenge(context.Background(), time.Second); return err },
			kind: model.KindChallengeTimeout,
		},
		{
			name: "captcha closed by user", status: http.StatusConflict, code: "captcha-cancelled",
			call: func(c *Client) error { _, err := c.OpenChallenge(context.Background(), time.Second); return err },
			kind: model.KindChallengeCancelled,
		},
		{
			name: "login rejected", status: http.StatusUnauthorized, code: "LOGIN_REJECTED",
			call: func(c *Client) error { return c.SubmitCredentials(context.Background(), "a", "s", "t") },
			kind: model.KindChallengeRejected,
		},
		{
			name: "confirm timeout", status: http.StatusGatewayTimeout, code: "timeout",
			call: func(c *Client) error { return c.WaitUntilConfirmed(context.Background(), time.Second) },
			kind: model.KindConfirmationTimeout,
		},
		{
			name: "launch failure", status: http.StatusInternalServerError, code: "SPAWN_FAILED",
			call: func(c *Client) error { return c.LaunchClient(context.Background()) },
			kind: model.KindLaunchFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tc.status, errorBody{Code: tc.code, Message: "from client"})
			}))

			err := tc.call(c)
			raw := requireRaw(t, err)
			assert.Equal(t, tc.status, raw.HTTPStatus)
			assert.Equal(t, "from client", raw.Message)
			assert.Equal(t, tc.kind, classify.Classify(err).Kind)
		})
	}
}

func TestNonJSONServerErrorIsTransport(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))

	raw := requireRaw(t, c.ForceClose(context.Background()))
	assert.Equal(t, ports.CodeTransport, raw.Code)
	assert.Equal(t, "upstream exploded", raw.Message)
}

func TestUnreachableClientIsTransportUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, RequestTimeout: time.Second})
	require.NoError(t, err)

	err = c.LaunchClient(context.Background())
	raw := requireRaw(t, err)
	assert.Equal(t, ports.CodeTransport, raw.Code)
	assert.ErrorIs(t, err, ports.ErrTransportUnavailable)
}

func TestBreakerOpensOnTransportFailuresOnly(t *testing.T) {
	var hits atomic.Int32
	var healthy atomic.Bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		if healthy.Load() {
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: "REJECTED"})
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}), func(cfg *Config) {
		cfg.BreakerThreshold = 2
		cfg.BreakerReset = time.Hour
	})

	// Domain rejections never trip the breaker.
	healthy.Store(true)
	for i := 0; i < 3; i++ {
		_ = c.SubmitCredentials(context.Background(), "a", "s", "t")
	}
	assert.Equal(t, resilience.StateClosed, c.Breaker())

	healthy.Store(false)
	_ = c.LaunchClient(context.Background())
	_ = c.LaunchClient(context.Background())
	require.Equal(t, resilience.StateOpen, c.Breaker())

	before := hits.Load()
	err := c.LaunchClient(context.Background())
	assert.ErrorIs(t, err, ports.ErrTransportUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, hits.Load(), "open breaker must not reach the client")
}

func TestCallerCancelReturnsContextError(t *testing.T) {
	entered := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.WaitUntilConfirmed(ctx, time.Minute) }()
	<-entered
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("call did not return after cancel")
	}
	assert.Equal(t, resilience.StateClosed, c.Breaker())
}

func TestRateLimiterHonoursContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, stateResponse{State: "OPEN"})
	}), func(cfg *Config) {
		cfg.RateLimit = 0.001
		cfg.Burst = 1
	})

	_, err := c.QueryState(context.Background())
	require.NoError(t, err)

	// The next token is ~17 minutes away; a short deadline cannot wait for it.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.QueryState(ctx)
	require.Error(t, err)
	raw := requireRaw(t, err)
	assert.Equal(t, ports.CodeTransport, raw.Code)
}
