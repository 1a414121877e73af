// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldAccountID     = "account_id"
	FieldFlowID        = "flow_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOp        = "op"

	// Flow fields
	FieldPhase       = "phase"
	FieldKind        = "kind"
	FieldRemediation = "remediation"
	FieldElapsedMS   = "elapsed_ms"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldBaseURL = "base_url"
	FieldTopic   = "topic"
)
