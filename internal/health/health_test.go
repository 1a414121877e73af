// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_WithCheckers(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	// Non-verbose: no checks included
	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusDegraded, resp.Checks["degraded"].Status)
}

func TestManager_Health_Details(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterDetail("clientState", func() any { return "LOGIN_READY" })

	assert.Nil(t, m.Health(context.Background(), false).Details)
	assert.Equal(t, "LOGIN_READY", m.Health(context.Background(), true).Details["clientState"])
}

func TestManager_Ready(t *testing.T) {
	tests := []struct {
		name      string
		checkers  []Checker
		wantReady bool
		want      Status
	}{
		{name: "no checkers", wantReady: true, want: StatusHealthy},
		{
			name:      "degraded stays ready",
			checkers:  []Checker{&mockChecker{name: "a", status: StatusHealthy}, &mockChecker{name: "b", status: StatusDegraded}},
			wantReady: true,
			want:      StatusDegraded,
		},
		{
			name:      "unhealthy wins",
			checkers:  []Checker{&mockChecker{name: "a", status: StatusUnhealthy}, &mockChecker{name: "b", status: StatusDegraded}},
			wantReady: false,
			want:      StatusUnhealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestFuncChecker(t *testing.T) {
	ok := NewFuncChecker("store", func(context.Context) error { return nil })
	assert.Equal(t, "store", ok.Name())
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	hard := NewFuncChecker("guard", func(context.Context) error { return errors.New("redis down") })
	res := hard.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "redis down", res.Error)

	soft := NewSoftChecker("client", func(context.Context) error { return errors.New("breaker open") })
	assert.Equal(t, StatusDegraded, soft.Check(context.Background()).Status)
}

func TestFuncChecker_HonoursDeadline(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(NewFuncChecker("slow", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		return nil
	}))
	assert.True(t, m.Ready(context.Background()).Ready)
}

func TestServeHealthAndReady(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(&mockChecker{name: "guard", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, StatusUnhealthy, health.Status)

	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var ready ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ready))
	assert.False(t, ready.Ready)
	assert.Equal(t, StatusUnhealthy, ready.Checks["guard"].Status)
}
