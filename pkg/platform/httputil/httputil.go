// Package httputil carries the JSON response and decode helpers shared by
// all HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "github.com/AstraSyncAI/astrasync-api/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; registration payloads are small.
const maxBodyBytes = 1 << 20

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to its HTTP status and writes the error body. Internal
// errors keep a generic message and expose only the correlation id; every
// other code carries its message through.
func WriteError(w http.ResponseWriter, err error) {
	de := dErrors.From(err)
	if de == nil {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}

	body := ErrorBody{Error: string(de.Code), Message: de.Message}
	if de.Code == dErrors.CodeInternal {
		body.Message = "an internal error occurred"
		body.CorrelationID = de.Correlation
	}
	WriteJSON(w, dErrors.ToHTTPStatus(de.Code), body)
}

// Decode reads a bounded JSON body into T. A malformed or oversized body is
// a bad request.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return v, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON")
	}
	return v, nil
}
