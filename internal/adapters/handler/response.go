// Package handler implements HTTP request handlers
package handler

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the standard response envelope for the callable API.
type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// WriteJSON writes a JSON response with the standard envelope
func WriteJSON(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// WriteError writes an error response with a nil data payload
func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, message, nil)
}
