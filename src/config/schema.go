// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchema indicates that the configuration document does not match the schema.
var ErrSchema = errors.New("config: document does not match schema")

// schemaDocument describes the keys this tool reads. Unknown top-level keys
// are allowed because wrangler.toml carries many settings unrelated to mTLS.
const schemaDocument = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": { "type": "string" },
    "upstream": { "type": "string" },
    "proxied_zones": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 }
    },
    "mtls_certificates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["binding", "certificate_id"],
        "additionalProperties": false,
        "properties": {
          "binding": { "type": "string", "minLength": 1 },
          "certificate_id": { "type": "string", "minLength": 1 }
        }
      }
    },
    "store": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "dir": { "type": "string" }
      }
    },
    "fetch": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "timeout_seconds": { "type": "integer", "minimum": 0 },
        "user_agent": { "type": "string" },
        "ca_certificate_id": { "type": "string" }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(schemaDocument)

// validateSchema checks a generically decoded document against the schema.
func validateSchema(doc map[string]any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("config: schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
}
