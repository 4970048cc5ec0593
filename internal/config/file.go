package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// readFile loads a flat key/value config file. Keys are matched against the
// environment variable names, so "api_base_url", "api-base-url" and
// "API_BASE_URL" are the same key.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return nil, fmt.Errorf("parse TOML config %s: %w", path, err)
		}
		raw = tree.ToMap()
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse YAML config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse JSON config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (want .toml, .yaml, .yml or .json)", ext)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config key %q: nested values are not supported", k)
		}
		values[normalizeKey(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func normalizeKey(k string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(strings.TrimSpace(k)))
}
