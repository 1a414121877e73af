// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
)

func raw(op ports.Operation, code ports.FailureCode) error {
	return &ports.RawFailure{Op: op, Code: code, Message: fmt.Sprintf("%s/%s", op, code)}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind model.ErrorKind
		rem  model.Remediation
	}{
		{"launch transport", raw(ports.OpLaunch, ports.CodeTransport), model.KindLaunchFailed, model.RemediationRetryOnceThenEscalate},
		{"launch timeout", raw(ports.OpLaunch, ports.CodeTimedOut), model.KindLaunchFailed, model.RemediationRetryOnceThenEscalate},
		{"launch unrecognized", raw(ports.OpLaunch, ports.CodeUnrecognized), model.KindLaunchFailed, model.RemediationRetryOnceThenEscalate},
		{"launch cancelled", raw(ports.OpLaunch, ports.CodeCancelled), model.KindCancelled, model.RemediationOfferRetry},
		{"ready timeout", raw(ports.OpAwaitReady, ports.CodeTimedOut), model.KindReadyTimeout, model.RemediationForceCloseAndRetry},
		{"ready cancelled", raw(ports.OpAwaitReady, ports.CodeCancelled), model.KindCancelled, model.RemediationOfferRetry},
		{"ready transport", raw(ports.OpAwaitReady, ports.CodeTransport), model.KindUnknown, model.RemediationRetryOnce},
		{"challenge in progress", raw(ports.OpChallenge, ports.CodeAlreadyInProgress), model.KindAlreadyInProgress, model.RemediationInformOnly},
		{"challenge timeout", raw(ports.OpChallenge, ports.CodeTimedOut), model.KindChallengeTimeout, model.RemediationOfferRetry},
		{"challenge user cancelled", raw(ports.OpChallenge, ports.CodeUserCancelled), model.KindChallengeCancelled, model.RemediationOfferRetry},
		{"challenge caller cancelled", raw(ports.OpChallenge, ports.CodeCancelled), model.KindChallengeCancelled, model.RemediationOfferRetry},
		{"challenge rejected is not guessed", raw(ports.OpChallenge, ports.CodeRejected), model.KindUnknown, model.RemediationRetryOnce},
		{"submit rejected", raw(ports.OpSubmit, ports.CodeRejected), model.KindChallengeRejected, model.RemediationImmediateRetry},
		{"submit timeout", raw(ports.OpSubmit, ports.CodeTimedOut), model.KindUnknown, model.RemediationRetryOnce},
		{"submit generic", raw(ports.OpSubmit, ports.CodeUnrecognized), model.KindUnknown, model.RemediationRetryOnce},
		{"submit cancelled", raw(ports.OpSubmit, ports.CodeCancelled), model.KindCancelled, model.RemediationOfferRetry},
		{"confirm timeout", raw(ports.OpConfirm, ports.CodeTimedOut), model.KindConfirmationTimeout, model.RemediationRetrySuggestForceClose},
		{"confirm rejected", raw(ports.OpConfirm, ports.CodeRejected), model.KindUnknown, model.RemediationRetryOnce},
		{"query cancelled", raw(ports.OpQuery, ports.CodeCancelled), model.KindCancelled, model.RemediationOfferRetry},
		{"wrapped raw", fmt.Errorf("step: %w", raw(ports.OpSubmit, ports.CodeRejected)), model.KindChallengeRejected, model.RemediationImmediateRetry},
		{"guard rejection", fmt.Errorf("%w: account x", model.ErrAlreadyInProgress), model.KindAlreadyInProgress, model.RemediationInformOnly},
		{"bare cancel", context.Canceled, model.KindCancelled, model.RemediationOfferRetry},
		{"bare deadline", context.DeadlineExceeded, model.KindUnknown, model.RemediationRetryOnce},
		{"opaque", errors.New("segfault"), model.KindUnknown, model.RemediationRetryOnce},
		{"nil", nil, model.KindUnknown, model.RemediationRetryOnce},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.rem, got.Remediation)
			assert.NotEmpty(t, got.Detail)
		})
	}
}

func TestClassifyPassesThroughFlowError(t *testing.T) {
	fe := &model.FlowError{Kind: model.KindReadyTimeout, Detail: "stuck"}
	got := Classify(fmt.Errorf("outer: %w", fe))
	assert.Equal(t, model.KindReadyTimeout, got.Kind)
	assert.Equal(t, model.RemediationForceCloseAndRetry, got.Remediation)
	assert.Equal(t, "stuck", got.Detail)
}

func TestClassifyUsesMessageAsDetail(t *testing.T) {
	got := Classify(&ports.RawFailure{Op: ports.OpSubmit, Code: ports.CodeRejected, Message: "captcha mismatch"})
	assert.Equal(t, "captcha mismatch", got.Detail)

	got = Classify(&ports.RawFailure{Op: ports.OpLaunch, Err: errors.New("exec: not found")})
	assert.Equal(t, "client launch failed: exec: not found", got.Detail)
}

func TestClassifyUnknownWireCodesStayUnknown(t *testing.T) {
	tests := []struct {
		op   ports.Operation
		code string
	}{
		{ports.OpSubmit, "credentials_rejected"},
		{ports.OpSubmit, "account_rejected_banned"},
		{ports.OpConfirm, "session_timeout_policy_denied"},
		{ports.OpChallenge, "another_login_in_progress_on_other_account"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := Classify(&ports.RawFailure{Op: tt.op, Code: ports.ParseFailureCode(tt.code)})
			assert.Equal(t, model.KindUnknown, got.Kind)
			assert.Equal(t, model.RemediationRetryOnce, got.Remediation)
		})
	}
}
