// Package packet defines the JSON request catalogue spoken between clients
// and application servers, response and push payload shapes, and the strict
// decoder used by the dispatcher.
//
// Every request is a JSON object with a required "type" discriminator.
// Schemas are closed: unknown fields are rejected, and required string
// fields must be non-empty. Responses carry {status, message}; pushes are
// server-initiated payloads addressed to another client.
package packet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Request type discriminators.
const (
	TypeLogin      = "login"
	TypeLogout     = "logout"
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeRefresh    = "refresh"
	TypeNotify     = "notify"
	TypeStreaming  = "streaming"
	TypeScreenData = "screen_data"
	TypeRequestApp = "request_app"
	TypeReturnApp  = "return_app"
)

// ErrNotJSON reports a payload that is not a JSON object.
var ErrNotJSON = errors.New("request payload is not a JSON object")

// UnknownTypeError reports a well-formed request with an unrecognized type.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown request type: %q", e.Type)
}

// InvalidError reports a request that failed schema validation: unknown
// fields, missing required fields, or constraint violations.
type InvalidError struct {
	Type string
	Err  error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s request: %v", e.Type, e.Err)
}

func (e *InvalidError) Unwrap() error {
	return e.Err
}

// Request is implemented by every typed request in the catalogue.
type Request interface {
	// RequestType returns the wire discriminator for the request.
	RequestType() string
}

// schemaValidator enforces the validate struct tags on decoded requests.
var schemaValidator = validator.New()

// typeProbe extracts the discriminator without validating the rest.
type typeProbe struct {
	Type string `json:"type"`
}

// Decode parses a payload into its typed request.
//
// Errors distinguish the three failure classes the dispatcher reports
// differently: ErrNotJSON (malformed payload), *UnknownTypeError
// (unrecognized discriminator), and *InvalidError (schema violation).
func Decode(payload []byte) (Request, error) {
	var probe typeProbe
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, ErrNotJSON
	}

	var req Request
	switch probe.Type {
	case TypeLogin:
		req = &Login{}
	case TypeLogout:
		req = &Logout{}
	case TypeCreateRoom:
		req = &CreateRoom{}
	case TypeJoinRoom:
		req = &JoinRoom{}
	case TypeRefresh:
		req = &Refresh{}
	case TypeNotify:
		req = &Notify{}
	case TypeStreaming:
		req = &Streaming{}
	case TypeScreenData:
		req = &ScreenData{}
	case TypeRequestApp:
		req = &RequestApp{}
	case TypeReturnApp:
		req = &ReturnApp{}
	default:
		return nil, &UnknownTypeError{Type: probe.Type}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return nil, &InvalidError{Type: probe.Type, Err: err}
	}

	if err := schemaValidator.Struct(req); err != nil {
		return nil, &InvalidError{Type: probe.Type, Err: err}
	}

	return req, nil
}
