package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes a tree as a JSON object. Files become base64 strings
// and directories nested objects.
func (t Tree) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(t))
	for name, entry := range t {
		var (
			raw []byte
			err error
		)
		switch e := entry.(type) {
		case File:
			raw, err = json.Marshal([]byte(e))
		case Tree:
			raw, err = e.MarshalJSON()
		default:
			err = fmt.Errorf("tree: unsupported entry %T at %q", entry, name)
		}
		if err != nil {
			return nil, err
		}
		obj[name] = raw
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes the encoding produced by MarshalJSON.
func (t *Tree) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = nil
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("tree: decode directory: %w", err)
	}
	out := make(Tree, len(obj))
	for name, raw := range obj {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			var sub Tree
			if err := sub.UnmarshalJSON(trimmed); err != nil {
				return err
			}
			out[name] = sub
			continue
		}
		var content []byte
		if err := json.Unmarshal(trimmed, &content); err != nil {
			return fmt.Errorf("tree: decode file %q: %w", name, err)
		}
		out[name] = File(content)
	}
	*t = out
	return nil
}
