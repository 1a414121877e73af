// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "fmt"

// Change is a single field that differs between two configurations.
type Change struct {
	Field     string
	Old, New  string
	Hot       bool // applied without restart
	Sensitive bool
}

// Diff lists changed fields. Only auth timeouts and the log level apply live;
// everything else needs a restart.
func Diff(old, newCfg AppConfig) []Change {
	var out []Change
	add := func(field string, a, b any, hot, sensitive bool) {
		as, bs := fmt.Sprint(a), fmt.Sprint(b)
		if as != bs {
			out = append(out, Change{Field: field, Old: as, New: bs, Hot: hot, Sensitive: sensitive})
		}
	}

	add("logLevel", old.LogLevel, newCfg.LogLevel, true, false)
	add("auth.readyTimeout", old.Auth.ReadyTimeout, newCfg.Auth.ReadyTimeout, true, false)
	add("auth.challengeTimeout", old.Auth.ChallengeTimeout, newCfg.Auth.ChallengeTimeout, true, false)
	add("auth.submitTimeout", old.Auth.SubmitTimeout, newCfg.Auth.SubmitTimeout, true, false)
	add("auth.confirmationTimeout", old.Auth.ConfirmationTimeout, newCfg.Auth.ConfirmationTimeout, true, false)
	add("auth.flowTimeout", old.Auth.FlowTimeout, newCfg.Auth.FlowTimeout, true, false)

	add("auth.readiness", old.Auth.Readiness, newCfg.Auth.Readiness, false, false)
	add("api.listenAddr", old.API.ListenAddr, newCfg.API.ListenAddr, false, false)
	add("client.baseURL", old.Client.BaseURL, newCfg.Client.BaseURL, false, false)
	add("client.notificationsURL", old.Client.NotificationsURL, newCfg.Client.NotificationsURL, false, false)
	add("guard.backend", old.Guard.Backend, newCfg.Guard.Backend, false, false)
	add("guard.redis.password", old.Guard.Redis.Password, newCfg.Guard.Redis.Password, false, true)
	add("store.backend", old.Store.Backend, newCfg.Store.Backend, false, false)
	add("store.path", old.Store.Path, newCfg.Store.Path, false, false)
	return out
}
