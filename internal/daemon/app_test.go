// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clientauth/internal/config"
	"github.com/ManuGH/clientauth/internal/log"
)

func TestApp_RequiresManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil, nil)
	require.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_RunStopsWithContext(t *testing.T) {
	mgr, err := NewManager(testServerConfig(), testDeps())
	require.NoError(t, err)

	app := NewApp(log.WithComponent("test"), mgr, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return mgr.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApp_ReloadAppliesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := config.Defaults()
	cfg.Store.Backend = config.StoreMemory
	require.NoError(t, config.WriteFile(path, cfg, false))

	loader := config.NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewConfigHolder(initial, loader, path)

	mgr, err := NewManager(testServerConfig(), testDeps())
	require.NoError(t, err)

	applied := make(chan config.AppConfig, 1)
	app := NewApp(log.WithComponent("test"), mgr, holder, func(c config.AppConfig) {
		select {
		case applied <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return mgr.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	cfg.Auth.ReadyTimeout = 20 * time.Second
	require.NoError(t, config.WriteFile(path, cfg, true))
	require.NoError(t, holder.Reload(ctx))

	select {
	case got := <-applied:
		assert.Equal(t, 20*time.Second, got.Auth.ReadyTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("reload was not applied")
	}
}
