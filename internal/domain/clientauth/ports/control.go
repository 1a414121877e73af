// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"
	"time"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
)

// StateQuerier answers explicit "what state are you in" queries.
type StateQuerier interface {
	QueryState(ctx context.Context) (model.ClientState, error)
}

// ClientControl is the narrow RPC surface of the external game client.
// Failures should be returned as *RawFailure; anything else is classified as unknown.
// Every call must return promptly once ctx is done. The orchestrator stops
// waiting at that point regardless, so a call that keeps running only leaks
// its own goroutine.
type ClientControl interface {
	StateQuerier

	// LaunchClient requests that the external client be started.
	LaunchClient(ctx context.Context) error

	// WaitUntilState blocks until the client reports target or timeout elapses.
	WaitUntilState(ctx context.Context, target model.ClientState, timeout time.Duration) error

	// OpenChallenge opens the human challenge surface and blocks for the solution token.
	OpenChallenge(ctx context.Context, timeout time.Duration) (model.ChallengeToken, error)

	// SubmitCredentials submits the account secret together with the challenge solution.
	SubmitCredentials(ctx context.Context, account model.AccountID, secret string, token model.ChallengeToken) error

	// WaitUntilConfirmed blocks until the client reports an authenticated session.
	WaitUntilConfirmed(ctx context.Context, timeout time.Duration) error

	// ForceClose kills a stuck client so a retry starts from a clean process.
	ForceClose(ctx context.Context) error
}
