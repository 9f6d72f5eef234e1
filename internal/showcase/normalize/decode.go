package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// metadataPath is the chain of keys from an object's content down to the
// key/value list that carries project metadata.
var metadataPath = []string{"fields", "value", "fields", "metadata", "fields", "contents"}

// DecodeError reports a structural or field-level problem in an object.
// Path names the first link that was missing or malformed.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("decode %s: missing", e.Path)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Entry is one metadata key/value pair.
type Entry struct {
	Key   string
	Value string
}

type rawEntry struct {
	Fields *struct {
		Key   json.RawMessage `json:"key"`
		Value json.RawMessage `json:"value"`
	} `json:"fields"`
}

// DecodeContents walks content down to the metadata list. Entries lacking a
// key or a value are skipped.
func DecodeContents(content json.RawMessage) ([]Entry, error) {
	path := "content"
	cur := content
	if isNull(cur) {
		return nil, &DecodeError{Path: path}
	}

	for _, key := range metadataPath {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil, &DecodeError{Path: path, Err: errors.New("not an object")}
		}
		path += "." + key
		next, ok := obj[key]
		if !ok || isNull(next) {
			return nil, &DecodeError{Path: path}
		}
		cur = next
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(cur, &raw); err != nil {
		return nil, &DecodeError{Path: path, Err: errors.New("not a list")}
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var r rawEntry
		if err := json.Unmarshal(item, &r); err != nil || r.Fields == nil {
			continue
		}
		key, value := text(r.Fields.Key), text(r.Fields.Value)
		if key == "" || value == "" {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// text renders a JSON scalar as a string; non-string values keep their
// literal JSON form.
func text(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
