package handler

import (
	"encoding/json"
	"net/http"
)

type fieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// errorResponse is the body of every 4xx/5xx reply.
type errorResponse struct {
	Error          string       `json:"error"`
	Code           string       `json:"code"`
	Required       []string     `json:"required,omitempty"`
	Fields         []fieldError `json:"fields,omitempty"`
	RequiredAmount *float64     `json:"required_amount,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
