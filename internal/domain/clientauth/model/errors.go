// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy of flow failures.
// Keep these stable: metrics and API clients depend on them.
type ErrorKind string

const (
	KindAlreadyInProgress   ErrorKind = "ALREADY_IN_PROGRESS"
	KindLaunchFailed        ErrorKind = "LAUNCH_FAILED"
	KindReadyTimeout        ErrorKind = "READY_TIMEOUT"
	KindChallengeTimeout    ErrorKind = "CHALLENGE_TIMEOUT"
	KindChallengeCancelled  ErrorKind = "CHALLENGE_CANCELLED"
	KindChallengeRejected   ErrorKind = "CHALLENGE_REJECTED"
	KindConfirmationTimeout ErrorKind = "CONFIRMATION_TIMEOUT"
	KindCancelled           ErrorKind = "CANCELLED" // caller cancelled outside the challenge step
	KindUnknown             ErrorKind = "UNKNOWN"
)

// Remediation is the action a caller should offer for a failed flow.
// It is decoupled from the kind so UI affordances can be tested on their own.
type Remediation string

const (
	RemediationNone                   Remediation = "NONE"
	RemediationInformOnly             Remediation = "INFORM_ONLY"
	RemediationRetryOnceThenEscalate  Remediation = "RETRY_ONCE_THEN_ESCALATE"
	RemediationForceCloseAndRetry     Remediation = "FORCE_CLOSE_AND_RETRY"
	RemediationOfferRetry             Remediation = "OFFER_RETRY"
	RemediationImmediateRetry         Remediation = "IMMEDIATE_RETRY"
	RemediationRetrySuggestForceClose Remediation = "RETRY_SUGGEST_FORCE_CLOSE"
	RemediationRetryOnce              Remediation = "RETRY_ONCE"
)

// Retryable reports whether the caller may offer a retry affordance.
func (r Remediation) Retryable() bool {
	switch r {
	case RemediationNone, RemediationInformOnly:
		return false
	}
	return true
}

// DefaultRemediation returns the canonical remediation for kind.
func DefaultRemediation(kind ErrorKind) Remediation {
	switch kind {
	case KindAlreadyInProgress:
		return RemediationInformOnly
	case KindLaunchFailed:
		return RemediationRetryOnceThenEscalate
	case KindReadyTimeout:
		return RemediationForceCloseAndRetry
	case KindChallengeTimeout, KindChallengeCancelled, KindCancelled:
		return RemediationOfferRetry
	case KindChallengeRejected:
		return RemediationImmediateRetry
	case KindConfirmationTimeout:
		return RemediationRetrySuggestForceClose
	default:
		return RemediationRetryOnce
	}
}

// Per-kind sentinels for errors.Is checks on *FlowError.
var (
	ErrAlreadyInProgress   = errors.New("authentication already in progress")
	ErrLaunchFailed        = errors.New("client launch failed")
	ErrReadyTimeout        = errors.New("client did not become login-ready in time")
	ErrChallengeTimeout    = errors.New("challenge was not solved in time")
	ErrChallengeCancelled  = errors.New("challenge was cancelled")
	ErrChallengeRejected   = errors.New("challenge solution was rejected")
	ErrConfirmationTimeout = errors.New("login confirmation did not arrive in time")
	ErrFlowCancelled       = errors.New("authentication flow cancelled")
	ErrUnknown             = errors.New("unclassified authentication failure")
)

// ErrInvalidRequest is returned before admission when the request itself is unusable.
var ErrInvalidRequest = errors.New("invalid authentication request")

// KindSentinel maps an ErrorKind to its sentinel error.
func KindSentinel(kind ErrorKind) error {
	switch kind {
	case KindAlreadyInProgress:
		return ErrAlreadyInProgress
	case KindLaunchFailed:
		return ErrLaunchFailed
	case KindReadyTimeout:
		return ErrReadyTimeout
	case KindChallengeTimeout:
		return ErrChallengeTimeout
	case KindChallengeCancelled:
		return ErrChallengeCancelled
	case KindChallengeRejected:
		return ErrChallengeRejected
	case KindConfirmationTimeout:
		return ErrConfirmationTimeout
	case KindCancelled:
		return ErrFlowCancelled
	default:
		return ErrUnknown
	}
}

// FlowError is the single terminal failure delivered to the caller of a flow.
type FlowError struct {
	Kind        ErrorKind
	Remediation Remediation
	Phase       FlowPhase // phase the flow failed in
	AccountID   AccountID
	FlowID      string
	Detail      string
	Err         error
}

func (e *FlowError) Error() string {
	msg := fmt.Sprintf("clientauth: %s", e.Kind)
	if e.Phase != "" {
		msg = fmt.Sprintf("%s during %s", msg, e.Phase)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// Is matches the per-kind sentinel so callers can write errors.Is(err, model.ErrReadyTimeout).
func (e *FlowError) Is(target error) bool {
	if target == nil {
		return false
	}
	return target == KindSentinel(e.Kind)
}

// Retryable reports whether the caller may offer a retry for this failure.
func (e *FlowError) Retryable() bool {
	return e.Remediation.Retryable()
}

// AsFlowError extracts a *FlowError from err.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
