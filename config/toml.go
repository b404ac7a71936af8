package config

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// tomlToYAML decodes a TOML document into a generic tree and re-encodes it
// as YAML so both formats share one decoding and validation path.
func tomlToYAML(data []byte) ([]byte, error) {
	var tree map[string]interface{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("line %d, column %d: %w", row, col, err)
		}
		return nil, err
	}
	if len(tree) == 0 {
		return nil, nil
	}
	return yaml.Marshal(tree)
}

// MarshalTOML renders cfg as a TOML document. Extensions are included as
// top-level tables.
func MarshalTOML(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return toml.Marshal(tree)
}
