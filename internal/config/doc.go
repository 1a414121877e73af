// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the clientauth daemon configuration.
//
// Precedence is ENV > file > defaults. The YAML file is decoded strictly and
// environment keys use the CLIENTAUTH_ prefix.
package config
