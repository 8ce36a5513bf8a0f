package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// HashTimeLayout is the timestamp layout fed into the record hash.
const HashTimeLayout = "2006-01-02T15:04:05.000Z"

// HashInput carries the fields covered by an audit record hash.
type HashInput struct {
	SubjectID    string
	EventType    string
	FieldChanged string
	OldValue     string
	NewValue     string
	Role         string
	Metadata     map[string]any
	Timestamp    time.Time
}

// hashDocument fixes the key order of the canonical serialization:
// userId, eventType, fieldChanged, oldValue, newValue, role, metadata, timestamp.
// Metadata is embedded as its own JSON string.
type hashDocument struct {
	UserID       string `json:"userId"`
	EventType    string `json:"eventType"`
	FieldChanged string `json:"fieldChanged"`
	OldValue     string `json:"oldValue"`
	NewValue     string `json:"newValue"`
	Role         string `json:"role"`
	Metadata     string `json:"metadata"`
	Timestamp    string `json:"timestamp"`
}

// ComputeHash returns hex(SHA-256(canonical JSON of in)).
func ComputeHash(in HashInput) (string, error) {
	meta := in.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := marshalCompact(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	doc, err := marshalCompact(hashDocument{
		UserID:       in.SubjectID,
		EventType:    in.EventType,
		FieldChanged: in.FieldChanged,
		OldValue:     in.OldValue,
		NewValue:     in.NewValue,
		Role:         in.Role,
		Metadata:     string(metaJSON),
		Timestamp:    in.Timestamp.UTC().Format(HashTimeLayout),
	})
	if err != nil {
		return "", fmt.Errorf("encode hash document: %w", err)
	}
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:]), nil
}

// marshalCompact encodes v the way JSON.stringify does: no HTML escaping, no
// trailing newline, and U+2028/U+2029 left as raw characters.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// unescapeLineSeparators rewrites the \u2028 and \u2029 escapes emitted by
// encoding/json back to raw UTF-8. Other escape sequences, including an
// escaped backslash followed by "u2028", are copied unchanged.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if i+5 < len(b) && b[i+1] == 'u' && string(b[i+2:i+5]) == "202" {
			switch b[i+5] {
			case '8':
				out = append(out, "\u2028"...)
				i += 5
				continue
			case '9':
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}
