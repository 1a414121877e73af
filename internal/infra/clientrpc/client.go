// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package clientrpc talks to the external game client over its local HTTP/JSON
// control API and its websocket notification stream.
package clientrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
	"github.com/ManuGH/clientauth/internal/log"
	"github.com/ManuGH/clientauth/internal/metrics"
	"github.com/ManuGH/clientauth/internal/resilience"
)

const (
	breakerName = "clientrpc"
	// Long-poll calls get this much on top of the step timeout they carry.
	longPollGrace = 5 * time.Second
	maxErrorBody  = 4 << 10
)

// Control API paths, relative to Config.BaseURL.
const (
	pathLaunch     = "/v1/launch"
	pathState      = "/v1/state"
	pathWaitState  = "/v1/state/wait"
	pathChallenge  = "/v1/challenge"
	pathLogin      = "/v1/login"
	pathConfirm    = "/v1/login/confirm"
	pathForceClose = "/v1/force-close"
)

// Config configures the control API client.
type Config struct {
	BaseURL          string
	RequestTimeout   time.Duration // bound for calls that do not long-poll
	RateLimit        float64       // requests per second; <= 0 disables limiting
	Burst            int
	BreakerThreshold int
	BreakerReset     time.Duration
	HTTPClient       *http.Client
}

// Client implements ports.ClientControl.
type Client struct {
	base           string
	http           *http.Client
	requestTimeout time.Duration
	limiter        *rate.Limiter
	breaker        *resilience.CircuitBreaker
	logger         zerolog.Logger
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("clientrpc: base url is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		base:           base,
		http:           hc,
		requestTimeout: cfg.RequestTimeout,
		limiter:        limiter,
		breaker: resilience.NewCircuitBreaker(breakerName, cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithFailurePredicate(isTechnical)),
		logger: log.WithComponent("clientrpc"),
	}, nil
}

// Breaker exposes the breaker state for health reporting.
func (c *Client) Breaker() resilience.State {
	return c.breaker.State()
}

type stateResponse struct {
	State string `json:"state"`
}

type waitRequest struct {
	Target    string `json:"target,omitempty"`
	TimeoutMS int64  `json:"timeoutMs"`
}

type challengeResponse struct {
	Token string `json:"token"`
}

type loginRequest struct {
	Account string `json:"account"`
	Secret  string `json:"secret"`
	Token   string `json:"token"`
}

// errorBody is the control API's failure document.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) LaunchClient(ctx context.Context) error {
	return c.call(ctx, ports.OpLaunch, http.MethodPost, pathLaunch, nil, nil, c.requestTimeout)
}

func (c *Client) QueryState(ctx context.Context) (model.ClientState, error) {
	var resp stateResponse
	if err := c.call(ctx, ports.OpQuery, http.MethodGet, pathState, nil, &resp, c.requestTimeout); err != nil {
		return "", err
	}
	st, ok := model.ParseClientState(resp.State)
	if !ok {
		return "", &ports.RawFailure{Op: ports.OpQuery, Code: ports.CodeUnrecognized, Message: fmt.Sprintf("unknown client state %q", resp.State)}
	}
	return st, nil
}

func (c *Client) WaitUntilState(ctx context.Context, target model.ClientState, timeout time.Duration) error {
	req := waitRequest{Target: string(target), TimeoutMS: timeout.Milliseconds()}
	return c.call(ctx, ports.OpAwaitReady, http.MethodPost, pathWaitState, req, nil, timeout+longPollGrace)
}

func (c *Client) OpenChallenge(ctx context.Context, timeout time.Duration) (model.ChallengeToken, error) {
	var resp challengeResponse
	req := waitRequest{TimeoutMS: timeout.Milliseconds()}
	if err := c.call(ctx, ports.OpChallenge, http.MethodPost, pathChallenge, req, &resp, timeout+longPollGrace); err != nil {
		return "", err
	}
	return model.ChallengeToken(resp.Token), nil
}

func (c *Client) SubmitCredentials(ctx context.Context, account model.AccountID, secret string, token model.ChallengeToken) error {
	req := loginRequest{Account: string(account), Secret: secret, Token: string(token)}
	return c.call(ctx, ports.OpSubmit, http.MethodPost, pathLogin, req, nil, c.requestTimeout)
}

func (c *Client) WaitUntilConfirmed(ctx context.Context, timeout time.Duration) error {
	req := waitRequest{TimeoutMS: timeout.Milliseconds()}
	return c.call(ctx, ports.OpConfirm, http.MethodPost, pathConfirm, req, nil, timeout+longPollGrace)
}

func (c *Client) ForceClose(ctx context.Context) error {
	return c.call(ctx, ports.OpForceClose, http.MethodPost, pathForceClose, nil, nil, c.requestTimeout)
}

// call performs one JSON request. Every failure is returned as *ports.RawFailure,
// except a cancelled ctx which is returned as ctx's error.
func (c *Client) call(ctx context.Context, op ports.Operation, method, path string, in, out any, timeout time.Duration) error {
	start := time.Now()
	err := c.do(ctx, op, method, path, in, out, timeout)
	metrics.RecordRPC(string(op), resultLabel(err), time.Since(start))
	if err != nil {
		c.logger.Debug().Err(err).
			Str(log.FieldEvent, "clientrpc.call_failed").
			Str(log.FieldOp, string(op)).
			Msg("control api call failed")
	}
	return err
}

func (c *Client) do(ctx context.Context, op ports.Operation, method, path string, in, out any, timeout time.Duration) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ports.RawFailure{Op: op, Code: ports.CodeTransport, Message: "rate limited", Err: err}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &ports.RawFailure{Op: op, Code: ports.CodeUnrecognized, Message: "encode request", Err: err}
		}
		body = bytes.NewReader(buf)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var failure error
	err := c.breaker.Execute(func() error {
		failure = c.roundTrip(reqCtx, op, method, path, body, out)
		return failure
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return &ports.RawFailure{Op: op, Code: ports.CodeTransport, Message: "control api circuit open", Err: fmt.Errorf("%w: %w", ports.ErrTransportUnavailable, err)}
	case err == nil:
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return failure
}

func (c *Client) roundTrip(ctx context.Context, op ports.Operation, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return &ports.RawFailure{Op: op, Code: ports.CodeUnrecognized, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return &ports.RawFailure{Op: op, Code: ports.CodeTimedOut, Message: "control api request timed out", Err: err}
			}
			return ctxErr
		}
		return &ports.RawFailure{Op: op, Code: ports.CodeTransport, Err: fmt.Errorf("%w: %w", ports.ErrTransportUnavailable, err)}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeFailure(op, res)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &ports.RawFailure{Op: op, Code: ports.CodeUnrecognized, Message: "malformed control api response", Err: err}
	}
	return nil
}

func decodeFailure(op ports.Operation, res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Code == "" {
		code := ports.CodeUnrecognized
		if res.StatusCode >= 500 {
			code = ports.CodeTransport
		}
		return &ports.RawFailure{Op: op, Code: code, HTTPStatus: res.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return &ports.RawFailure{Op: op, Code: ports.ParseFailureCode(eb.Code), HTTPStatus: res.StatusCode, Message: eb.Message}
}

// isTechnical reports whether err says the control API itself is unhealthy.
// Domain answers such as a rejected captcha do not count.
func isTechnical(err error) bool {
	var raw *ports.RawFailure
	if errors.As(err, &raw) {
		return raw.Code == ports.CodeTransport
	}
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var raw *ports.RawFailure
	if errors.As(err, &raw) {
		return string(raw.Code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return string(ports.CodeCancelled)
	}
	return string(ports.CodeUnrecognized)
}

var _ ports.ClientControl = (*Client)(nil)
