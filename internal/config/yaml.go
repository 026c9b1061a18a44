package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON re-encodes a single YAML document as JSON so both formats share
// the strict decoder. An empty document becomes {}.
func yamlToJSON(data []byte) ([]byte, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []byte("{}"), nil
		}
		return nil, fmt.Errorf("yaml: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml: config must be a single document")
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(jsonSafe(doc))
	if err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return out, nil
}

// jsonSafe turns non-string map keys (e.g. `1: x`) into strings.
func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = jsonSafe(child)
		}
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, child := range t {
			m[fmt.Sprint(k)] = jsonSafe(child)
		}
		return m
	case []any:
		for i, child := range t {
			t[i] = jsonSafe(child)
		}
	}
	return v
}
