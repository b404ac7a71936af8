package cmd

import (
	"encoding/json"

	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/logging"
	"github.com/grovetools/orion/tui/keymap"
	"github.com/invopop/jsonschema"
)

// extensionSchema reflects an extension section. Extensions tolerate
// unknown keys and require nothing.
func extensionSchema(v interface{}, description string) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}
	s := r.Reflect(v)
	s.Version = ""
	s.Required = nil
	s.Description = description
	return s
}

// ConfigSchema returns the orion.yml schema including the extension
// sections orion itself reads.
func ConfigSchema() ([]byte, error) {
	schema := config.Schema()
	schema.Properties.Set("logging", extensionSchema(&logging.Config{}, "Logging settings"))
	schema.Properties.Set("tui", extensionSchema(&keymap.Config{}, "Terminal UI settings: icons, key preset and keybinding overrides"))
	return json.MarshalIndent(schema, "", "  ")
}
