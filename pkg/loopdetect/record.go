// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package loopdetect watches the stream of tool invocations for exact,
// similar, or merely suspicious repetition and flags it so the agent loop
// can intervene instead of spinning forever.
package loopdetect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Record is one observed tool invocation, as kept in the detector's
// sliding window.
type Record struct {
	ToolName      string
	Arguments     json.RawMessage
	Timestamp     time.Time
	StepIndex     int
	SignatureHash string
	StructureHash string
}

// NewRecord builds a Record, computing both hashes from name/arguments.
func NewRecord(toolName string, arguments json.RawMessage, stepIndex int, at time.Time) Record {
	return Record{
		ToolName:      toolName,
		Arguments:     arguments,
		Timestamp:     at,
		StepIndex:     stepIndex,
		SignatureHash: signatureHash(toolName, arguments),
		StructureHash: structureHash(arguments),
	}
}

// signatureHash hashes the tool name plus a canonical (sorted-key) JSON
// encoding of arguments, so structurally identical calls collide.
func signatureHash(toolName string, arguments json.RawMessage) string {
	canonical := canonicalJSON(decodeAny(arguments))
	h := sha256.Sum256([]byte(toolName + "\x00" + canonical))
	return hex.EncodeToString(h[:])
}

// structureHash hashes only the shape of arguments — keys and JSON types,
// values erased — so near-identical call shapes collide even when values
// differ.
func structureHash(arguments json.RawMessage) string {
	shape := shapeOf(decodeAny(arguments))
	b, _ := json.Marshal(shape)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func decodeAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// canonicalJSON renders v with object keys sorted, so semantically
// identical values always produce the same bytes.
func canonicalJSON(v any) string {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			kb, _ := json.Marshal(k)
			out += string(kb) + ":" + canonicalJSON(t[k])
		}
		return out + "}"
	case []any:
		out := "["
		for i, e := range t {
			if i > 0 {
				out += ","
			}
			out += canonicalJSON(e)
		}
		return out + "]"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// shapeOf walks v recording type tags and, for objects, the sorted key
// set — values themselves are erased.
func shapeOf(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		shape := map[string]any{"_type": "object", "_keys": keys}
		fields := make(map[string]any, len(keys))
		for _, k := range keys {
			fields[k] = shapeOf(t[k])
		}
		shape["_fields"] = fields
		return shape
	case []any:
		elems := make([]any, len(t))
		for i, e := range t {
			elems[i] = shapeOf(e)
		}
		return map[string]any{"_type": "array", "_elements": elems}
	case string:
		return "string"
	case bool:
		return "bool"
	case nil:
		return "null"
	case float64:
		return "number"
	default:
		return "unknown"
	}
}
