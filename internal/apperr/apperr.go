// Package apperr defines the proxy's error envelope and the single
// code→HTTP-status mapping every request-time error is funneled through.
package apperr

import (
	"net/http"

	"github.com/goccy/go-json"
)

// Code is a stable error code attached to every error response, per
// the recovery table in the error handling design.
type Code string

const (
	InvalidURL           Code = "INVALID_URL"
	InvalidGraphQLRequest Code = "INVALID_GRAPHQL_REQUEST"
	MissingQuery         Code = "MISSING_QUERY"
	SchemaNotFound       Code = "SCHEMA_NOT_FOUND"
	SubgraphUnavailable  Code = "SUBGRAPH_UNAVAILABLE"
	SchemaFetchFailed    Code = "SCHEMA_FETCH_FAILED"
	GraphQLParseError    Code = "GRAPHQL_PARSE_ERROR"
	GraphQLValidationError Code = "GRAPHQL_VALIDATION_ERROR"
	SchemaError          Code = "SCHEMA_ERROR"
	MockGenerationError  Code = "MOCK_GENERATION_ERROR"
	PassthroughFailed    Code = "PASSTHROUGH_FAILED"
	GatewayTimeout       Code = "GATEWAY_TIMEOUT"
	BadGateway           Code = "BAD_GATEWAY"
	ServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	InternalServerError  Code = "INTERNAL_SERVER_ERROR"
)

// statusByCode is the single table mapping every known Code to its HTTP
// status. Anything not listed falls back to 500.
var statusByCode = map[Code]int{
	InvalidURL:             http.StatusBadRequest,
	InvalidGraphQLRequest:  http.StatusBadRequest,
	MissingQuery:           http.StatusBadRequest,
	SchemaNotFound:         http.StatusNotFound,
	SubgraphUnavailable:    http.StatusServiceUnavailable,
	SchemaFetchFailed:      http.StatusBadGateway,
	GraphQLParseError:      http.StatusBadRequest,
	GraphQLValidationError: http.StatusBadRequest,
	SchemaError:            http.StatusInternalServerError,
	MockGenerationError:    http.StatusInternalServerError,
	PassthroughFailed:      http.StatusBadGateway,
	GatewayTimeout:         http.StatusGatewayTimeout,
	BadGateway:             http.StatusBadGateway,
	ServiceUnavailable:     http.StatusServiceUnavailable,
	InternalServerError:    http.StatusInternalServerError,
}

// Error is the proxy's request-time error type. It carries enough to
// build the response envelope directly, without re-deriving status or
// extensions at the call site.
type Error struct {
	Code       Code
	Message    string
	Extensions map[string]any
	cause      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Status returns the HTTP status this error should be reported with.
func (e *Error) Status() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New builds an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error that keeps cause for Unwrap/error chains, using
// cause's message if message is empty.
func Wrap(code Code, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// WithExtension returns e with an extra extensions entry set, for callers
// that want to attach e.g. a subgraph name without constructing a new error.
func (e *Error) WithExtension(key string, value any) *Error {
	if e.Extensions == nil {
		e.Extensions = make(map[string]any)
	}
	e.Extensions[key] = value
	return e
}

// graphQLError is one entry of the envelope's "errors" array.
type graphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []string       `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions"`
}

// Location is a GraphQL source location. Respond never fills in
// Locations, so the field is omitted from every envelope it writes.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Envelope is the exact response body shape: {errors: [...], data: null}.
type Envelope struct {
	Errors []graphQLError `json:"errors"`
	Data   any            `json:"data"`
}

// Respond writes e to w as the standard error envelope, setting the status
// derived from e.Code and Content-Type: application/json. It never panics
// or returns an error; a write failure past this point is unrecoverable by
// definition (the client is gone).
func Respond(w http.ResponseWriter, e *Error) {
	ext := map[string]any{"code": string(e.Code)}
	for k, v := range e.Extensions {
		ext[k] = v
	}

	env := Envelope{
		Errors: []graphQLError{{Message: e.Message, Extensions: ext}},
		Data:   nil,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(env)
}

// As reports whether err is (or wraps) an *Error, returning it if so.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if ae, ok := err.(*Error); ok {
		return ae, true
	}
	type unwrapper interface{ Unwrap() error }
	for u, ok := err.(unwrapper); ok; u, ok = err.(unwrapper) {
		err = u.Unwrap()
		if ae, ok := err.(*Error); ok {
			return ae, true
		}
	}
	return nil, false
}
