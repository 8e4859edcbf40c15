package capability

import (
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// yamlToJSON converts a YAML model document to JSON bytes so that schema
// validation and the document walk share one code path.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}

	doc = normalizeYAML(doc)

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("YAML conversion error: %w", err)
	}
	return out, nil
}

// normalizeYAML rewrites map[any]any nodes (produced for non-string keys)
// into map[string]any so the document can be marshalled as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}
