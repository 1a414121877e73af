// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/fsm"
)

// forwardPath is the only success path through the login protocol.
var forwardPath = []struct {
	From  model.FlowPhase
	Event EventKind
	To    model.FlowPhase
}{
	{model.PhaseIdle, EvLaunchRequested, model.PhaseLaunching},
	{model.PhaseLaunching, EvLaunched, model.PhaseAwaitingReady},
	{model.PhaseAwaitingReady, EvReady, model.PhaseAwaitingChallenge},
	{model.PhaseAwaitingChallenge, EvChallengeSolved, model.PhaseSubmitting},
	{model.PhaseSubmitting, EvSubmitted, model.PhaseAwaitingConfirmation},
	{model.PhaseAwaitingConfirmation, EvConfirmed, model.PhaseSucceeded},
}

// nonTerminal lists every phase that may still fail.
var nonTerminal = []model.FlowPhase{
	model.PhaseIdle,
	model.PhaseLaunching,
	model.PhaseAwaitingReady,
	model.PhaseAwaitingChallenge,
	model.PhaseSubmitting,
	model.PhaseAwaitingConfirmation,
}

// phaseRank orders phases along the forward path. FAILED has no rank.
var phaseRank = map[model.FlowPhase]int{
	model.PhaseIdle:                 0,
	model.PhaseLaunching:            1,
	model.PhaseAwaitingReady:        2,
	model.PhaseAwaitingChallenge:    3,
	model.PhaseSubmitting:           4,
	model.PhaseAwaitingConfirmation: 5,
	model.PhaseSucceeded:            6,
}

func transitions(f *Flow) []fsm.Transition[model.FlowPhase, EventKind] {
	out := make([]fsm.Transition[model.FlowPhase, EventKind], 0, len(forwardPath)+len(nonTerminal))
	for _, p := range forwardPath {
		tr := fsm.Transition[model.FlowPhase, EventKind]{From: p.From, Event: p.Event, To: p.To}
		if p.Event == EvChallengeSolved {
			tr.Guard = f.requireToken
			tr.Action = f.commitToken
		}
		out = append(out, tr)
	}
	for _, from := range nonTerminal {
		out = append(out, fsm.Transition[model.FlowPhase, EventKind]{
			From:   from,
			Event:  EvFail,
			To:     model.PhaseFailed,
			Action: f.commitFailure,
		})
	}
	return out
}

// Allowed reports whether ev is a legal event in phase from.
func Allowed(from model.FlowPhase, ev EventKind) bool {
	if ev == EvFail {
		return !from.IsTerminal()
	}
	for _, p := range forwardPath {
		if p.From == from && p.Event == ev {
			return true
		}
	}
	return false
}
