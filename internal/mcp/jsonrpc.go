// ABOUTME: JSON-RPC 2.0 envelope codec for the MCP bridge.
// ABOUTME: Parses opaque requests, extracts ids, and builds transport-level error envelopes.

package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
)

// Standard JSON-RPC error codes used for locally synthesized responses.
const (
	JSONRPCParseError     = mcp.PARSE_ERROR
	JSONRPCInvalidRequest = mcp.INVALID_REQUEST
	JSONRPCInternalError  = mcp.INTERNAL_ERROR
)

// Messages for the standard codes.
const (
	MessageParseError    = "Parse error"
	MessageInternalError = "Internal error"
)

// ErrParse is returned by ParseRequest when the body is not well-formed JSON.
var ErrParse = errors.New("parse error")

var nullID = json.RawMessage("null")

// Request is a parsed but otherwise opaque JSON-RPC request.
// Raw holds the exact bytes the caller sent; the backend receives them untouched.
type Request struct {
	Raw    json.RawMessage
	ID     json.RawMessage // nil when the request is not an object or carries no id
	Method string          // informational only, used for logging and audit
}

// Response is a JSON-RPC 2.0 error response synthesized by the gateway.
// Successful responses are never built locally; the backend envelope is relayed as-is.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *Error          `json:"error"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// requestFields picks the few members the gateway looks at.
// Method is a RawMessage so a non-string method never fails the parse.
type requestFields struct {
	ID     json.RawMessage `json:"id"`
	Method json.RawMessage `json:"method"`
}

// ParseRequest validates body as JSON and extracts the id and method when present.
// Any syntactically valid JSON value is accepted; shape validation is the backend's job.
func ParseRequest(body []byte) (*Request, error) {
	if !utf8.Valid(body) || !json.Valid(body) {
		return nil, ErrParse
	}

	req := &Request{Raw: json.RawMessage(body)}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return req, nil
	}

	var fields requestFields
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		// Valid JSON always decodes into RawMessage fields; keep the request opaque anyway.
		return req, nil
	}
	if len(fields.ID) > 0 {
		req.ID = fields.ID
	}
	if len(fields.Method) > 0 {
		var method string
		if err := json.Unmarshal(fields.Method, &method); err == nil {
			req.Method = method
		}
	}
	return req, nil
}

// IDOrNull returns the request id, or JSON null when the request is nil or has none.
func (r *Request) IDOrNull() json.RawMessage {
	if r == nil || len(r.ID) == 0 {
		return nullID
	}
	return r.ID
}

// NewErrorResponse builds a well-formed error envelope. It never fails:
// a missing id is rendered as null.
func NewErrorResponse(id json.RawMessage, code int, message string) Response {
	if len(id) == 0 {
		id = nullID
	}
	return Response{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

// Marshal serializes any JSON value without HTML escaping or a trailing newline.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
