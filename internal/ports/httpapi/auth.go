package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"fightclaw/internal/ports"
)

var agentNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type registerRequest struct {
	Name string `json:"name"`
}

// handleRegister implements POST /v1/auth/register. Unverified agents are
// created with an opaque claim code that the admin verify route consumes.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body", "bad_request", reqID)
		return
	}
	if !agentNamePattern.MatchString(req.Name) {
		writeError(w, http.StatusBadRequest, "name must be 1-64 chars of [A-Za-z0-9_-]", "bad_request", reqID)
		return
	}

	agent, err := s.store.RegisterAgent(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, ports.ErrNameInUse) {
			writeError(w, http.StatusConflict, "name already in use", "name_in_use", reqID)
			return
		}
		logRequestError(s.logger, "auth/register", err)
		writeError(w, http.StatusServiceUnavailable, "registration storage unavailable", "unavailable", reqID)
		return
	}

	plaintext, key, err := s.store.IssueAPIKey(r.Context(), agent.ID)
	if err != nil {
		logRequestError(s.logger, "auth/register", err)
		writeError(w, http.StatusServiceUnavailable, "key issuance storage unavailable", "unavailable", reqID)
		return
	}

	writeJSON(w, http.StatusCreated, okEnvelope(map[string]any{
		"agent": map[string]any{
			"id":       agent.ID,
			"name":     agent.Name,
			"verified": false,
		},
		"apiKey":       plaintext,
		"apiKeyPrefix": key.KeyPrefix,
		"claimCode":    agent.ClaimCode,
	}))
}

type verifyRequest struct {
	ClaimCode string `json:"claimCode"`
}

// handleVerify implements POST /v1/auth/verify (admin-only).
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClaimCode == "" {
		writeError(w, http.StatusBadRequest, "claimCode is required", "bad_request", reqID)
		return
	}

	agent, err := s.store.VerifyAgent(r.Context(), req.ClaimCode)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "no agent holds this claim code", "not_found", reqID)
		return
	case errors.Is(err, ports.ErrAlreadyVerified):
		writeError(w, http.StatusConflict, "agent already verified", "already_verified", reqID)
		return
	case err != nil:
		logRequestError(s.logger, "auth/verify", err)
		writeError(w, http.StatusInternalServerError, "verification failed", "internal_error", reqID)
		return
	}

	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{
		"agentId":    agent.ID,
		"verifiedAt": agent.VerifiedAt,
	}))
}

// handleMe implements GET /v1/auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	agent := agentFrom(r)
	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{
		"agent": map[string]any{
			"id":         agent.ID,
			"name":       agent.Name,
			"verified":   agent.Verified(),
			"verifiedAt": agent.VerifiedAt,
			"createdAt":  agent.CreatedAt,
		},
	}))
}
