// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package classify maps raw client failures onto the closed ErrorKind taxonomy.
//
// Classification is a pure function of the failure. Wire strings are parsed once
// at the RPC boundary (ports.ParseFailureCode); nothing here inspects message text.
// Failures that cannot be told apart are reported as KindUnknown, never guessed.
package classify

import (
	"context"
	"errors"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
)

// Classification is the typed outcome of a failure.
type Classification struct {
	Kind        model.ErrorKind
	Remediation model.Remediation
	Detail      string
}

func of(kind model.ErrorKind, detail string) Classification {
	return Classification{Kind: kind, Remediation: model.DefaultRemediation(kind), Detail: detail}
}

// Classify returns the kind and remediation for err.
func Classify(err error) Classification {
	if err == nil {
		return of(model.KindUnknown, "no failure reported")
	}

	if fe, ok := model.AsFlowError(err); ok {
		rem := fe.Remediation
		if rem == "" {
			rem = model.DefaultRemediation(fe.Kind)
		}
		return Classification{Kind: fe.Kind, Remediation: rem, Detail: fe.Detail}
	}

	if errors.Is(err, model.ErrAlreadyInProgress) {
		return of(model.KindAlreadyInProgress, err.Error())
	}

	var raw *ports.RawFailure
	if errors.As(err, &raw) {
		return classifyRaw(raw)
	}

	if errors.Is(err, context.Canceled) {
		return of(model.KindCancelled, err.Error())
	}
	return of(model.KindUnknown, err.Error())
}

func classifyRaw(f *ports.RawFailure) Classification {
	detail := f.Message
	if detail == "" {
		detail = f.Error()
	}

	switch f.Op {
	case ports.OpLaunch:
		// Any launch failure other than the caller walking away is LaunchFailed,
		// including the flow deadline expiring while the client starts.
		if f.Code == ports.CodeCancelled {
			return of(model.KindCancelled, detail)
		}
		return of(model.KindLaunchFailed, detail)

	case ports.OpAwaitReady:
		switch f.Code {
		case ports.CodeTimedOut:
			return of(model.KindReadyTimeout, detail)
		case ports.CodeCancelled:
			return of(model.KindCancelled, detail)
		}

	case ports.OpChallenge:
		switch f.Code {
		case ports.CodeAlreadyInProgress:
			return of(model.KindAlreadyInProgress, detail)
		case ports.CodeTimedOut:
			return of(model.KindChallengeTimeout, detail)
		case ports.CodeUserCancelled, ports.CodeCancelled:
			return of(model.KindChallengeCancelled, detail)
		}

	case ports.OpSubmit:
		switch f.Code {
		case ports.CodeRejected:
			return of(model.KindChallengeRejected, detail)
		case ports.CodeCancelled:
			return of(model.KindCancelled, detail)
		}

	case ports.OpConfirm:
		switch f.Code {
		case ports.CodeTimedOut:
			return of(model.KindConfirmationTimeout, detail)
		case ports.CodeCancelled:
			return of(model.KindCancelled, detail)
		}
	}

	if f.Code == ports.CodeCancelled {
		return of(model.KindCancelled, detail)
	}
	return of(model.KindUnknown, detail)
}
