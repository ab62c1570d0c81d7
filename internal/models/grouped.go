package models

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// GroupedResult maps file names to their chunks. Keys iterate in the order
// they were first appended.
type GroupedResult struct {
	keys   []string
	groups map[string][]ChunkRecord
}

// NewGroupedResult returns an empty result.
func NewGroupedResult() *GroupedResult {
	return &GroupedResult{groups: make(map[string][]ChunkRecord)}
}

// Append adds a record to the group for key, creating the group at the end
// of the key order when it does not exist yet.
func (g *GroupedResult) Append(key string, record ChunkRecord) {
	if g.groups == nil {
		g.groups = make(map[string][]ChunkRecord)
	}
	if _, ok := g.groups[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.groups[key] = append(g.groups[key], record)
}

// Keys returns the group keys in first-seen order.
func (g *GroupedResult) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Get returns the records for key.
func (g *GroupedResult) Get(key string) ([]ChunkRecord, bool) {
	records, ok := g.groups[key]
	return records, ok
}

// Len returns the number of groups.
func (g *GroupedResult) Len() int {
	return len(g.keys)
}

// Count returns the number of records across all groups.
func (g *GroupedResult) Count() int {
	n := 0
	for _, records := range g.groups {
		n += len(records)
	}
	return n
}

// Flatten concatenates the groups in key order.
func (g *GroupedResult) Flatten() []ChunkRecord {
	out := make([]ChunkRecord, 0, g.Count())
	for _, key := range g.keys {
		out = append(out, g.groups[key]...)
	}
	return out
}

// MarshalJSON writes the groups as a JSON object in key order.
func (g *GroupedResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range g.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		v, err := json.Marshal(g.groups[key])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeMsgpack implements msgpack.CustomEncoder, keeping key order.
func (g *GroupedResult) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(g.keys)); err != nil {
		return err
	}
	for _, key := range g.keys {
		if err := enc.EncodeString(key); err != nil {
			return err
		}
		if err := enc.Encode(g.groups[key]); err != nil {
			return err
		}
	}
	return nil
}
