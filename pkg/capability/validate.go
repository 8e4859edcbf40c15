package capability

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument indicates the document failed schema validation.
var ErrInvalidDocument = errors.New("invalid capability model document")

// documentSchema is the JSON schema every capability model document must
// satisfy before the walk. It checks structure only; member semantics
// (duplicates, schema kinds) are enforced by the parser itself.
const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "interfaces"],
	"properties": {
		"id": {"type": "string"},
		"name": {"type": "string", "minLength": 1},
		"version": {"type": "integer", "minimum": 0},
		"interfaces": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string", "minLength": 1},
					"displayName": {"type": "string"},
					"properties": {"type": "array", "items": {"$ref": "#/definitions/member"}},
					"commands": {"type": "array", "items": {"$ref": "#/definitions/member"}},
					"telemetry": {"type": "array", "items": {"$ref": "#/definitions/member"}}
				}
			}
		}
	},
	"definitions": {
		"member": {
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"displayName": {"type": "string"},
				"unit": {"type": "string"},
				"writable": {"type": "boolean"}
			}
		}
	}
}`

var (
	compiledSchema     *gojsonschema.Schema
	compileSchemaOnce  sync.Once
	compileSchemaError error
)

// validateDocument validates JSON model bytes against the embedded
// document schema.
func validateDocument(jsonData []byte) error {
	compileSchemaOnce.Do(func() {
		compiledSchema, compileSchemaError = gojsonschema.NewSchema(
			gojsonschema.NewStringLoader(documentSchema))
	})
	if compileSchemaError != nil {
		return fmt.Errorf("cannot compile document schema: %w", compileSchemaError)
	}

	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}
