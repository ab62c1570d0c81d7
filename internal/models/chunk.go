package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// FileNameField is the only ChunkRecord field the gateway reads.
const FileNameField = "file_name"

// ChunkRecord is one opaque chunk returned by the backend. The raw JSON is kept
// byte for byte; only the file_name field is inspected to derive the group key.
//
// Key derivation is lenient: a missing or null file_name (or a record that is not
// an object) groups under "", and non-string values group under their JSON text.
type ChunkRecord struct {
	raw      json.RawMessage
	fileName string
}

// NewChunkRecord builds a record from raw JSON.
func NewChunkRecord(raw []byte) (ChunkRecord, error) {
	var r ChunkRecord
	if err := r.UnmarshalJSON(raw); err != nil {
		return ChunkRecord{}, err
	}
	return r, nil
}

// FileName returns the grouping key of the record.
func (r ChunkRecord) FileName() string {
	return r.fileName
}

// Raw returns the record exactly as the backend sent it.
func (r ChunkRecord) Raw() json.RawMessage {
	return r.raw
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ChunkRecord) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("chunk record is not valid JSON")
	}
	r.raw = append(json.RawMessage(nil), data...)
	r.fileName = ""

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return fmt.Errorf("decoding chunk record: %w", err)
	}
	r.fileName = groupKey(fields[FileNameField])
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r ChunkRecord) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.raw, nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (r ChunkRecord) EncodeMsgpack(enc *msgpack.Encoder) error {
	if len(r.raw) == 0 {
		return enc.EncodeNil()
	}
	dec := json.NewDecoder(bytes.NewReader(r.raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decoding chunk record: %w", err)
	}
	return enc.Encode(normalizeNumbers(v))
}

func groupKey(value json.RawMessage) string {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return ""
	}
	if value[0] == '"' {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return string(value)
	}
	return compact.String()
}

// normalizeNumbers turns json.Number values into int64 or float64 so msgpack
// encodes them as numbers rather than strings.
func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = normalizeNumbers(inner)
		}
		return t
	case []interface{}:
		for i, inner := range t {
			t[i] = normalizeNumbers(inner)
		}
		return t
	default:
		return v
	}
}
