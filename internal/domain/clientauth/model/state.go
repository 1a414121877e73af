// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"strings"
	"time"
)

// ClientState is the last known lifecycle state of the external game client.
// Exactly one value is current at any instant; it is replaced, never mutated.
type ClientState string

const (
	ClientChecking       ClientState = "CHECKING"
	ClientClosed         ClientState = "CLOSED"
	ClientOpen           ClientState = "OPEN"
	ClientLoginReady     ClientState = "LOGIN_READY"
	ClientCaptchaSolving ClientState = "CAPTCHA_SOLVING"
	ClientLoggedIn       ClientState = "LOGGED_IN"
)

var clientStates = map[string]ClientState{
	"CHECKING":       ClientChecking,
	"CLOSED":         ClientClosed,
	"OPEN":           ClientOpen,
	"LOGINREADY":     ClientLoginReady,
	"CAPTCHASOLVING": ClientCaptchaSolving,
	"LOGGEDIN":       ClientLoggedIn,
}

// ParseClientState normalizes a wire spelling ("LoginReady", "login_ready",
// "LOGIN-READY") into a ClientState. Unknown values report false.
func ParseClientState(raw string) (ClientState, bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	s, ok := clientStates[key]
	return s, ok
}

// Valid reports whether s is one of the known lifecycle states.
func (s ClientState) Valid() bool {
	switch s {
	case ClientChecking, ClientClosed, ClientOpen, ClientLoginReady, ClientCaptchaSolving, ClientLoggedIn:
		return true
	}
	return false
}

func (s ClientState) String() string {
	return string(s)
}

// StateChangeNotification is a normalized push event from the external client.
// Transport ordering and deduplication are not assumed.
type StateChangeNotification struct {
	State      ClientState
	ReceivedAt time.Time
}
