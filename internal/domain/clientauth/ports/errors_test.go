// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFailureCode(t *testing.T) {
	tests := map[string]FailureCode{
		"":                    CodeNone,
		"ALREADY_IN_PROGRESS": CodeAlreadyInProgress,
		"captcha in progress": CodeAlreadyInProgress,
		"timed-out":           CodeTimedOut,
		"CAPTCHA_TIMEOUT":     CodeTimedOut,
		"user cancelled":      CodeUserCancelled,
		"CAPTCHA_CANCELED":    CodeUserCancelled,
		"rejected":            CodeRejected,
		"Login-Rejected":      CodeRejected,
		"invalid captcha":     CodeRejected,
		"disk full":           CodeUnrecognized,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseFailureCode(raw), "raw=%q", raw)
	}
}

func TestParseFailureCode_DoesNotMatchFragments(t *testing.T) {
	for _, raw := range []string{
		"credentials_rejected",
		"account_rejected_banned",
		"session_timeout_policy_denied",
		"another_login_in_progress_on_other_account",
		"not_cancelled",
		"rejected_by_policy",
		"timeout_",
	} {
		assert.Equal(t, CodeUnrecognized, ParseFailureCode(raw), "raw=%q", raw)
	}
}

func TestRawFailure_ErrorAndUnwrap(t *testing.T) {
	f := &RawFailure{Op: OpSubmit, Code: CodeRejected, Message: "captcha mismatch", Err: context.Canceled}
	assert.Equal(t, "client submit failed [rejected]: captcha mismatch: context canceled", f.Error())
	assert.True(t, errors.Is(f, context.Canceled))
}
