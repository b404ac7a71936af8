package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for orion.yml. Sections reject
// unknown keys; unknown top-level keys are extensions and are allowed.
func GenerateSchema() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}

// Schema reflects the orion.yml schema. Callers may add extension sections
// to its Properties before marshaling.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		// Do not allow unknown fields inside the known sections.
		AllowAdditionalProperties: false,
		// Inline nested sections instead of using $ref for a self-contained schema.
		DoNotReference: true,
		ExpandedStruct: true,
		// Every field is optional; defaults fill in what is omitted.
		RequiredFromJSONSchemaTags: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "Orion Configuration"
	schema.Description = "Schema for orion.yml and orion.toml."
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.AdditionalProperties = jsonschema.TrueSchema
	return schema
}
