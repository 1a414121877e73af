// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/log"
)

const maxLoginBody = 16 << 10

type loginRequest struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

func accountParam(r *http.Request) model.AccountID {
	return model.AccountID(strings.TrimSpace(chi.URLParam(r, "accountID")))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	id := accountParam(r)

	var req loginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid-request", "Invalid Request", "INVALID_BODY", err.Error(), nil)
		return
	}

	sess, err := s.deps.Auth.Authenticate(r.Context(), id, model.Credentials{Username: req.Username, Secret: req.Secret})
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, model.ErrInvalidRequest) {
		writeProblem(w, r, http.StatusBadRequest, "invalid-request", "Invalid Request", "INVALID_REQUEST", err.Error(), nil)
		return
	}

	fe, ok := model.AsFlowError(err)
	if !ok {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("authenticate returned an unclassified error")
		writeProblem(w, r, http.StatusInternalServerError, "internal", "Internal Error", string(model.KindUnknown), "", nil)
		return
	}

	status := flowErrorStatus(fe.Kind)
	extra := map[string]any{
		"kind":        fe.Kind,
		"remediation": fe.Remediation,
		"retryable":   fe.Retryable(),
	}
	if fe.Phase != "" {
		extra["phase"] = fe.Phase
	}
	if fe.FlowID != "" {
		extra["flowId"] = fe.FlowID
	}
	if fe.AccountID != "" {
		extra["accountId"] = fe.AccountID
	}
	problemType := "auth/" + strings.ToLower(strings.ReplaceAll(string(fe.Kind), "_", "-"))
	writeProblem(w, r, status, problemType, "Authentication Failed", string(fe.Kind), fe.Detail, extra)
}

func flowErrorStatus(kind model.ErrorKind) int {
	switch kind {
	case model.KindAlreadyInProgress, model.KindChallengeCancelled, model.KindCancelled:
		return http.StatusConflict
	case model.KindLaunchFailed:
		return http.StatusBadGateway
	case model.KindReadyTimeout, model.KindChallengeTimeout, model.KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	case model.KindChallengeRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Cancel(accountParam(r)) {
		writeProblem(w, r, http.StatusNotFound, "flow-not-found", "No Active Flow", "FLOW_NOT_FOUND", "", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActiveFlows(w http.ResponseWriter, _ *http.Request) {
	flows := s.deps.Auth.ActiveFlows()
	if flows == nil {
		flows = []model.FlowSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"flows": flows})
}

func (s *Server) handleFlowHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Records == nil {
		writeProblem(w, r, http.StatusServiceUnavailable, "history-unavailable", "History Unavailable", "HISTORY_DISABLED", "", nil)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeProblem(w, r, http.StatusBadRequest, "invalid-request", "Invalid Request", "INVALID_LIMIT", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	recs, err := s.deps.Records.ListFlows(r.Context(), accountParam(r), limit)
	if err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("list flow records failed")
		writeProblem(w, r, http.StatusInternalServerError, "internal", "Internal Error", "HISTORY_READ_FAILED", "", nil)
		return
	}
	if recs == nil {
		recs = []model.FlowSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"flows": recs})
}
