// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the daemon.
const (
	// Flow attributes
	AccountIDKey   = "clientauth.account_id"
	FlowIDKey      = "clientauth.flow_id"
	FlowPhaseKey   = "clientauth.phase"
	FlowKindKey    = "clientauth.kind"
	RemediationKey = "clientauth.remediation"
	ElapsedMSKey   = "clientauth.elapsed_ms"

	// Client state attributes
	ClientStateKey = "client.state"
	ReadinessKey   = "client.readiness_source"

	// RPC attributes
	RPCOpKey     = "rpc.op"
	RPCCodeKey   = "rpc.code"
	RPCStatusKey = "rpc.http_status"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// FlowAttributes identifies a flow on a span.
func FlowAttributes(accountID, flowID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AccountIDKey, accountID),
		attribute.String(FlowIDKey, flowID),
	}
}

// OutcomeAttributes describes a terminal flow outcome.
func OutcomeAttributes(phase, kind, remediation string, elapsedMS int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(FlowPhaseKey, phase),
		attribute.Int64(ElapsedMSKey, elapsedMS),
	}
	if kind != "" {
		attrs = append(attrs,
			attribute.String(FlowKindKey, kind),
			attribute.String(RemediationKey, remediation),
		)
	}
	return attrs
}

// RPCAttributes describes a call to the client control API.
func RPCAttributes(op string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RPCOpKey, op),
		attribute.Int(RPCStatusKey, status),
	}
}

// ErrorAttributes marks a span as failed with a classified error type.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
