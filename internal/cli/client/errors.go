package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// priorityKeys are checked before field errors, in this order
var priorityKeys = []string{"detail", "message", "error", "non_field_errors"}

// APIError is a non-2xx response from the backend
type APIError struct {
	Status  int
	Payload *ErrorPayload
	Body    []byte
}

func newAPIError(status int, body []byte) *APIError {
	payload, _ := ParseErrorPayload(body)
	return &APIError{Status: status, Payload: payload, Body: body}
}

func (e *APIError) Error() string {
	if e.Payload != nil {
		if msg, ok := e.Payload.First(); ok {
			return fmt.Sprintf("request failed (status %d): %s", e.Status, msg)
		}
	}
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		body = http.StatusText(e.Status)
	}
	return fmt.Sprintf("request failed (status %d): %s", e.Status, body)
}

// IsUnauthorized reports whether err is a 401 from the backend
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// FieldMessages is one key of an error payload with its messages
type FieldMessages struct {
	Key      string
	Messages []string
}

// ErrorPayload is a decoded backend error body with its keys kept in
// document order.
type ErrorPayload struct {
	Fields []FieldMessages
}

// ParseErrorPayload decodes a backend error body. Recognised shapes:
//
//	{"detail": "..."}                        single message
//	{"email": ["...", "..."], "city": [...]} field errors
//	{"user": {"email": ["..."]}}             nested field errors
//	["...", "..."]                           bare list
//	"..."                                    bare string
//
// Anything else yields ok=false.
func ParseErrorPayload(body []byte) (*ErrorPayload, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false
	}

	switch body[0] {
	case '{':
		fields, err := parseObject(body)
		if err != nil || len(fields) == 0 {
			return nil, false
		}
		return &ErrorPayload{Fields: fields}, true
	case '[', '"':
		msgs := flatten(body)
		if len(msgs) == 0 {
			return nil, false
		}
		return &ErrorPayload{Fields: []FieldMessages{{Key: "", Messages: msgs}}}, true
	default:
		return nil, false
	}
}

// parseObject walks a JSON object keeping key order, which a map would lose
func parseObject(data []byte) ([]FieldMessages, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object")
	}

	var fields []FieldMessages
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		if msgs := flatten(raw); len(msgs) > 0 {
			fields = append(fields, FieldMessages{Key: key, Messages: msgs})
		}
	}
	return fields, nil
}

// flatten collects every string in a value, depth first, in document order
func flatten(raw []byte) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil
		}
		return []string{s}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out []string
		for _, item := range items {
			out = append(out, flatten(item)...)
		}
		return out
	case '{':
		fields, err := parseObject(raw)
		if err != nil {
			return nil
		}
		var out []string
		for _, f := range fields {
			out = append(out, f.Messages...)
		}
		return out
	default:
		return nil
	}
}

// Get returns the messages under key
func (p *ErrorPayload) Get(key string) []string {
	for _, f := range p.Fields {
		if f.Key == key {
			return f.Messages
		}
	}
	return nil
}

// First returns the message to surface to the user: the first string under
// the first priority key present, else under the first field in document order.
func (p *ErrorPayload) First() (string, bool) {
	if p == nil {
		return "", false
	}
	for _, key := range priorityKeys {
		if msgs := p.Get(key); len(msgs) > 0 {
			return msgs[0], true
		}
	}
	for _, f := range p.Fields {
		if len(f.Messages) > 0 {
			return f.Messages[0], true
		}
	}
	return "", false
}

// Message maps any error from this package to a user-facing string,
// using fallback when the server supplied nothing usable.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg, ok := apiErr.Payload.First(); ok {
			return msg
		}
	}
	return fallback
}
