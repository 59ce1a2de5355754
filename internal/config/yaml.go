package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// decodeStrict decodes the config file into cfg, rejecting unknown keys.
// YAML documents take a detour through JSON so a single strict decoder
// (DisallowUnknownFields) covers both formats.
func decodeStrict(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("yaml unmarshal: %w", err)
		}
		j, err := json.Marshal(stringKeyed(doc))
		if err != nil {
			return fmt.Errorf("yaml to json: %w", err)
		}
		data = j
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// stringKeyed rewrites nested map keys to strings so the document survives
// json.Marshal. The decoder already yields string keys for the section/scalar
// shapes this config uses; hand-edited files can still smuggle in others.
func stringKeyed(in any) any {
	switch x := in.(type) {
	case map[string]any:
		for k, v := range x {
			x[k] = stringKeyed(v)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, v := range x {
			out[fmt.Sprint(k)] = stringKeyed(v)
		}
		return out
	case []any:
		for i, v := range x {
			x[i] = stringKeyed(v)
		}
		return x
	}
	return in
}
