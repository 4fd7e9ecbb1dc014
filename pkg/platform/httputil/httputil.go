// Package httputil centralizes the JSON response envelope so every handler
// answers with the same {success, message, data|error} shape.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "verigate/pkg/domain-errors"
)

// Response is the uniform wire envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteSuccess writes a success envelope with the given status and payload.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteError translates a domain error into the failure envelope. Internal
// and external-service failures get a generic message on the wire; the
// original cause is for logs only.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	message := "internal server error"
	if code != dErrors.CodeInternal && code != dErrors.CodeExternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			message = de.Message
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Success: false,
		Message: message,
		Error:   string(code),
	})
}
