// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "clientauth", ExporterType: "invalid"})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: invalid (supported: grpc, http)", err.Error())
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "clientauth",
		ExporterType: "http",
		Endpoint:     "localhost:4318",
		SamplingRate: 0.5,
	})
	require.NoError(t, err)
	require.NotNil(t, provider.tp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// No collector is listening; shutdown may report the failed flush but must return.
	_ = provider.Shutdown(ctx)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestOutcomeAttributes(t *testing.T) {
	attrs := OutcomeAttributes("FAILED", "READY_TIMEOUT", "FORCE_CLOSE_AND_RETRY", 1500)
	assert.Contains(t, attrs, attribute.String(FlowKindKey, "READY_TIMEOUT"))
	assert.Contains(t, attrs, attribute.Int64(ElapsedMSKey, 1500))

	attrs = OutcomeAttributes("SUCCEEDED", "", "", 10)
	assert.Len(t, attrs, 2)
}

func TestFlowAndErrorAttributes(t *testing.T) {
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(AccountIDKey, "acc"),
		attribute.String(FlowIDKey, "flow"),
	}, FlowAttributes("acc", "flow"))

	attrs := ErrorAttributes(errors.New("x"), "LAUNCH_FAILED")
	assert.Contains(t, attrs, attribute.Bool(ErrorKey, true))
	assert.Len(t, RPCAttributes("launch", 502), 2)
}
