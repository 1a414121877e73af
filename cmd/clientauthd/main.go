// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command clientauthd runs the client authentication orchestrator behind an HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/clientauth/internal/config"
	"github.com/ManuGH/clientauth/internal/daemon"
	"github.com/ManuGH/clientauth/internal/log"
	"github.com/ManuGH/clientauth/internal/version"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "config" {
		os.Exit(runConfigCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	log.Configure(log.Config{
		Level:   "info",
		Service: "clientauth",
		Version: version.Version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = strings.TrimSpace(config.ParseString(config.EnvPrefix+"CONFIG", ""))
	}

	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = log.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("configuration loaded")

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.API.ListenAddr).
		Msg("starting clientauth")
	logger.Info().Msgf("→ Client control API: %s", maskURL(cfg.Client.BaseURL))
	logger.Info().Msgf("→ Notifications: %s", cfg.Client.Notifications)
	logger.Info().Msgf("→ Readiness: %s", cfg.Auth.Readiness)
	logger.Info().Msgf("→ Guard: %s, store: %s", cfg.Guard.Backend, cfg.Store.Backend)

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "startup.failed").
			Msg("failed to build runtime")
	}

	mgr, err := daemon.NewManager(serverConfig(cfg), daemon.Deps{
		Logger:     logger,
		APIHandler: rt.handler,
	})
	if err != nil {
		rt.closeAll(context.Background())
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "manager.creation.failed").
			Msg("failed to create daemon manager")
	}
	rt.registerHooks(mgr)

	// Cancel in-flight flows as soon as shutdown starts so blocked login
	// requests return before the server drains.
	context.AfterFunc(ctx, rt.cancelActiveFlows)

	holder := config.NewConfigHolder(cfg, loader, path)
	app := daemon.NewApp(logger, mgr, holder, rt.applyConfig)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
