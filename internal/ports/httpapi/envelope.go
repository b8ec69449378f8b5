// Package httpapi is the thin HTTP/SSE/WS transport adapter: it owns
// request parsing, auth, and the JSON envelope, and delegates every game
// decision to internal/app's Matchmaker and MatchActor.
package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// errorEnvelope is the non-2xx shape: {ok:false, error, code?, requestId?}.
type errorEnvelope struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes the error envelope. requestID is pulled from the
// request context by callers that have one; code is the machine-readable
// discriminant (e.g. "not_your_turn", "version_mismatch").
func writeError(w http.ResponseWriter, status int, message, code, requestID string) {
	writeJSON(w, status, errorEnvelope{OK: false, Error: message, Code: code, RequestID: requestID})
}

// okEnvelope wraps a success payload with the {ok:true, ...} envelope by
// copying fields into a flat map (always {ok:true, ...route-specific
// fields}).
func okEnvelope(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["ok"] = true
	return out
}

func logRequestError(logger *zap.Logger, route string, err error) {
	logger.Error("request failed", zap.String("route", route), zap.Error(err))
}
