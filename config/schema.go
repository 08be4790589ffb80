package config

import (
	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of the config file.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
