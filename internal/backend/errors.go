package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Status int
	// Detail is the backend's structured "detail" field, empty when absent.
	Detail string
	// Details is the raw error body: a json.RawMessage when it parses, a string otherwise.
	Details interface{}
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// UnreachableError is returned when no response was received from the backend.
type UnreachableError struct {
	Op  string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// InvalidResponseError is returned when a 2xx body does not have the expected shape.
type InvalidResponseError struct {
	Reason string
	Body   []byte
}

func (e *InvalidResponseError) Error() string {
	return "invalid backend response: " + e.Reason
}

func newStatusError(status int, body []byte) *StatusError {
	return &StatusError{
		Status:  status,
		Detail:  detailOf(body),
		Details: rawDetails(body),
	}
}

func detailOf(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	detail := bytes.TrimSpace(envelope.Detail)
	if len(detail) == 0 || bytes.Equal(detail, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(detail, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, detail); err != nil {
		return ""
	}
	return compact.String()
}

// rawDetails keeps a JSON body as-is and falls back to text otherwise.
func rawDetails(body []byte) interface{} {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(append([]byte(nil), trimmed...))
	}
	return string(body)
}
