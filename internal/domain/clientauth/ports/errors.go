// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTransportUnavailable signals that the channel to the external client could not be used.
var ErrTransportUnavailable = errors.New("client transport unavailable")

// Operation names the external call a raw failure came from.
type Operation string

const (
	OpLaunch     Operation = "launch"
	OpQuery      Operation = "query_state"
	OpAwaitReady Operation = "await_ready"
	OpChallenge  Operation = "challenge"
	OpSubmit     Operation = "submit"
	OpConfirm    Operation = "confirm"
	OpForceClose Operation = "force_close"
)

// FailureCode is the typed form of the error codes reported by the external client.
type FailureCode string

const (
	CodeNone              FailureCode = ""
	CodeAlreadyInProgress FailureCode = "already_in_progress"
	CodeTimedOut          FailureCode = "timed_out"
	CodeUserCancelled     FailureCode = "user_cancelled"
	CodeRejected          FailureCode = "rejected"
	CodeCancelled         FailureCode = "cancelled" // caller abandoned the step
	CodeTransport         FailureCode = "transport"
	CodeUnrecognized      FailureCode = "unrecognized"
)

// RawFailure is a failure reported by (or while talking to) the external client.
type RawFailure struct {
	Op         Operation
	Code       FailureCode
	HTTPStatus int // 0 unless the failure came from an HTTP response
	Message    string
	Err        error
}

func (f *RawFailure) Error() string {
	msg := fmt.Sprintf("client %s failed", f.Op)
	if f.Code != CodeNone {
		msg = fmt.Sprintf("%s [%s]", msg, f.Code)
	}
	if f.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, f.Message)
	}
	if f.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *RawFailure) Unwrap() error {
	return f.Err
}

// knownCodes lists every spelling the external client is known to emit. Codes
// outside this set are reported as CodeUnrecognized rather than matched by
// fragment: "credentials_rejected" and "captcha_rejected" mean different things.
var knownCodes = map[string]FailureCode{
	"already_in_progress": CodeAlreadyInProgress,
	"in_progress":         CodeAlreadyInProgress,
	"captcha_in_progress": CodeAlreadyInProgress,
	"login_in_progress":   CodeAlreadyInProgress,

	"timed_out":            CodeTimedOut,
	"timeout":              CodeTimedOut,
	"captcha_timeout":      CodeTimedOut,
	"captcha_timed_out":    CodeTimedOut,
	"confirm_timeout":      CodeTimedOut,
	"confirmation_timeout": CodeTimedOut,

	"cancelled":         CodeUserCancelled,
	"canceled":          CodeUserCancelled,
	"user_cancelled":    CodeUserCancelled,
	"user_canceled":     CodeUserCancelled,
	"captcha_cancelled": CodeUserCancelled,
	"captcha_canceled":  CodeUserCancelled,
	"captcha_closed":    CodeUserCancelled,
	"closed_by_user":    CodeUserCancelled,

	"rejected":         CodeRejected,
	"captcha_rejected": CodeRejected,
	"login_rejected":   CodeRejected,
	"invalid_captcha":  CodeRejected,
}

// ParseFailureCode maps the error code strings of the external client onto
// FailureCode. Case, hyphens and spaces are normalized; the code must otherwise
// match a known spelling exactly. It runs once at the RPC boundary; nothing
// downstream inspects raw strings.
func ParseFailureCode(raw string) FailureCode {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if s == "" {
		return CodeNone
	}
	if code, ok := knownCodes[s]; ok {
		return code
	}
	return CodeUnrecognized
}
