package http

import (
	"encoding/json"
	"net/http"
)

// Every endpoint answers with the same envelope: {"ok": true, "result": ...}
// or {"ok": true, "message": ...} on success, {"ok": false, "error": {code,
// message}} on failure. The status and gate endpoints always succeed; their
// failure modes live inside the result itself.
type envelope struct {
	OK      bool       `json:"ok"`
	Result  any        `json:"result,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeEnvelope(w http.ResponseWriter, statusCode int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(env)
}

func writeResult(w http.ResponseWriter, statusCode int, result any) {
	writeEnvelope(w, statusCode, envelope{OK: true, Result: result})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeEnvelope(w, statusCode, envelope{OK: true, Message: message})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeEnvelope(w, statusCode, envelope{OK: false, Error: &errorBody{Code: code, Message: message}})
}
