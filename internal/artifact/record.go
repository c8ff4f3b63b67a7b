// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package artifact

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bytedance/sonic"
)

// codec sorts map keys, so encodings of equal payloads are byte-identical.
var codec = sonic.ConfigStd

// Record is a structured artifact produced by the model: a decoded JSON
// object. The workflow carries it without interpreting the payload, apart
// from the few gate keys (approved, passed) that decisions read.
type Record map[string]any

// Bool reads a boolean field. ok is false when the key is absent or not a bool.
func (r Record) Bool(key string) (v bool, ok bool) {
	raw, exists := r[key]
	if !exists {
		return false, false
	}
	v, ok = raw.(bool)
	return v, ok
}

// String reads a string field, returning "" when absent or of another type.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Records reads an array-of-objects field.
func (r Record) Records(key string) []Record {
	items, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case map[string]any:
			out = append(out, Record(v))
		case Record:
			out = append(out, v)
		}
	}
	return out
}

// Strings reads an array-of-strings field, skipping non-string items.
func (r Record) Strings(key string) []string {
	items, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy obtained through a JSON round trip, so callers
// may hand records to collaborators without sharing nested maps.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	bs, err := codec.Marshal(r)
	if err != nil {
		return nil
	}
	var out Record
	if err := codec.Unmarshal(bs, &out); err != nil {
		return nil
	}
	return out
}

// Fingerprint is the hex sha256 of the canonical JSON encoding of v, so equal
// payloads hash equally.
func Fingerprint(v any) string {
	raw, err := codec.Marshal(v)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

// Snapshot names one artifact field and the fingerprint of its current value.
// The executor reports snapshots for the fields a step wrote.
type Snapshot struct {
	Kind string `json:"kind"` // e.g. "user_stories", "code"
	Hash string `json:"hash"`
}

// NewSnapshot fingerprints payload under kind.
func NewSnapshot(kind string, payload any) Snapshot {
	return Snapshot{Kind: kind, Hash: Fingerprint(payload)}
}

// Pretty renders v as indented JSON with sorted keys, for prompts and display.
func Pretty(v any) string {
	bs, err := codec.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(bs)
}
