// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

// EventKind drives a flow from one phase to the next.
type EventKind string

const (
	EvLaunchRequested EventKind = "launch_requested"
	EvLaunched        EventKind = "launched"
	EvReady           EventKind = "ready"
	EvChallengeSolved EventKind = "challenge_solved"
	EvSubmitted       EventKind = "submitted"
	EvConfirmed       EventKind = "confirmed"
	EvFail            EventKind = "fail"
)
