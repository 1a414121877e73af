// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"fmt"
	"strings"
	"time"
)

// AccountID identifies the account a flow authenticates. It is opaque and
// must stay stable for the lifetime of the flow.
type AccountID string

// Normalize trims surrounding whitespace. Every map key and lease key is derived
// from the normalized form.
func (id AccountID) Normalize() AccountID {
	return AccountID(strings.TrimSpace(string(id)))
}

// ChallengeToken is the opaque solution produced by the human challenge step.
type ChallengeToken string

// Credentials are the account secrets submitted together with the challenge token.
type Credentials struct {
	Username string
	Secret   string
}

// String never prints the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username:%q, Secret:<redacted>}", c.Username)
}

// FlowPhase is the position of a single authentication attempt in the login protocol.
type FlowPhase string

const (
	PhaseIdle                 FlowPhase = "IDLE"
	PhaseLaunching            FlowPhase = "LAUNCHING"
	PhaseAwaitingReady        FlowPhase = "AWAITING_READY"
	PhaseAwaitingChallenge    FlowPhase = "AWAITING_CHALLENGE"
	PhaseSubmitting           FlowPhase = "SUBMITTING"
	PhaseAwaitingConfirmation FlowPhase = "AWAITING_CONFIRMATION"
	PhaseSucceeded            FlowPhase = "SUCCEEDED"
	PhaseFailed               FlowPhase = "FAILED"
)

// IsTerminal returns true if the phase is a final phase.
func (p FlowPhase) IsTerminal() bool {
	switch p {
	case PhaseSucceeded, PhaseFailed:
		return true
	}
	return false
}

// Session is the value returned by a successful flow.
type Session struct {
	AccountID     AccountID     `json:"accountId"`
	FlowID        string        `json:"flowId"`
	Username      string        `json:"username,omitempty"`
	EstablishedAt time.Time     `json:"establishedAt"`
	Elapsed       time.Duration `json:"elapsedNs"`
}

// FlowSnapshot is a read-only view of an in-flight or finished flow.
type FlowSnapshot struct {
	FlowID      string      `json:"flowId"`
	AccountID   AccountID   `json:"accountId"`
	Phase       FlowPhase   `json:"phase"`
	Kind        ErrorKind   `json:"kind,omitempty"`
	Remediation Remediation `json:"remediation,omitempty"`
	StartedAt   time.Time   `json:"startedAt"`
	EndedAt     time.Time   `json:"endedAt,omitempty"`
	Detail      string      `json:"detail,omitempty"`
}
