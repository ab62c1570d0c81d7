package models

import (
	"encoding/json"
	"errors"
)

// ErrIndexFieldsRequired is returned when an index request lacks chunks or a file name.
var ErrIndexFieldsRequired = errors.New("both chunks and fileName are required")

// IndexRequest is the client body of the vector collection endpoint.
type IndexRequest struct {
	Chunks   []json.RawMessage `json:"chunks"`
	FileName string            `json:"fileName"`
}

// Validate checks both fields are present. An empty chunks array counts as missing.
func (r *IndexRequest) Validate() error {
	if len(r.Chunks) == 0 || r.FileName == "" {
		return ErrIndexFieldsRequired
	}
	return nil
}

// BackendIndexRequest is the body forwarded to the backend.
type BackendIndexRequest struct {
	Chunks   []json.RawMessage `json:"chunks"`
	FileName string            `json:"file_name"`
}
