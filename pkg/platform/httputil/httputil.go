// Package httputil holds the JSON response helpers shared by all handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "kycgate/pkg/domain-errors"
)

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a JSON error response.
// Internal errors never expose their description.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	status := StatusForCode(de.Code)
	body := map[string]any{"error": string(de.Code)}
	if status == http.StatusInternalServerError {
		body["error"] = string(dErrors.CodeInternal)
		WriteJSON(w, status, body)
		return
	}

	body["error_description"] = de.Message
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	for k, v := range de.Meta {
		if _, reserved := body[k]; !reserved {
			body[k] = v
		}
	}
	WriteJSON(w, status, body)
}

// StatusForCode maps a domain error code to an HTTP status.
func StatusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest, dErrors.CodeInvalidRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
