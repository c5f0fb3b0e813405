package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of the YAML config file, for editors that
// validate YAML against a schema.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference:             true,
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "ema-live configuration"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
