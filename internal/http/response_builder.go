// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses and the mapping
// from report errors to status codes.

package http

import (
	"encoding/json"
	"net/http"

	"cashflow/internal/middleware/trace"
	"cashflow/internal/report"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.data == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response","kind":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"requestId,omitempty"`
}

var kindNames = map[report.ErrorKind]string{
	report.KindInternal:    "internal",
	report.KindInvalid:     "invalid",
	report.KindUnsupported: "unsupported",
	report.KindSuperseded:  "superseded",
}

// StatusFor maps a report error to its HTTP status.
func StatusFor(kind report.ErrorKind) int {
	switch kind {
	case report.KindInvalid:
		return http.StatusBadRequest
	case report.KindUnsupported:
		return http.StatusNotImplemented
	case report.KindSuperseded:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// ErrorResponse creates an error response. Internal errors hide their
// message from the client.
func ErrorResponse(r *http.Request, err error) *JSONResponseBuilder {
	kind := report.Classify(err)
	msg := err.Error()
	if kind == report.KindInternal {
		msg = "internal error"
	}
	return NewJSONResponse().
		Status(StatusFor(kind)).
		Data(ErrorBody{Error: msg, Kind: kindNames[kind], RequestID: trace.GetRequestID(r.Context())})
}

// StatusError creates an error response with an explicit status.
func StatusError(r *http.Request, status int, kind, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(status).
		Data(ErrorBody{Error: message, Kind: kind, RequestID: trace.GetRequestID(r.Context())})
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(r *http.Request, allowedMethods string) *JSONResponseBuilder {
	return StatusError(r, http.StatusMethodNotAllowed, "invalid", "method not allowed").
		Header("Allow", allowedMethods)
}
