// Package validation checks artifact bodies before a wait is begun on them.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/actionwait/pkg/schema"
)

const blockSchemaURL = "https://actionwait.dev/schemas/blocks.json"

// blockSchemaJSON is the JSON Schema for an artifact body.
// Embedded as a constant to avoid filesystem dependencies.
const blockSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://actionwait.dev/schemas/blocks.json",
  "type": "array",
  "items": { "$ref": "#/$defs/block" },
  "$defs": {
    "block": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "type": "string", "minLength": 1 },
        "elements": {
          "type": "array",
          "items": { "$ref": "#/$defs/element" }
        },
        "accessory": { "$ref": "#/$defs/element" }
      }
    },
    "element": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "type": "string", "minLength": 1 }
      },
      "if": { "properties": { "type": { "const": "button" } } },
      "then": {
        "required": ["text"],
        "properties": {
          "text": {
            "oneOf": [
              { "type": "string", "minLength": 1 },
              {
                "type": "object",
                "required": ["text"],
                "properties": { "text": { "type": "string", "minLength": 1 } }
              }
            ]
          }
        }
      }
    }
  }
}`

// BlockValidator validates artifact bodies against the block schema.
// It is safe for concurrent use.
type BlockValidator struct {
	blocks *jsonschema.Schema
}

// NewBlockValidator creates a BlockValidator with the block schema pre-compiled.
func NewBlockValidator() (*BlockValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(blockSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal block schema: %w", err)
	}
	if err := c.AddResource(blockSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add block schema resource: %w", err)
	}

	compiled, err := c.Compile(blockSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile block schema: %w", err)
	}
	return &BlockValidator{blocks: compiled}, nil
}

// Validate checks that body is a list of typed blocks whose buttons all carry
// display text. A nil or empty body is valid.
func (v *BlockValidator) Validate(body []schema.Block) error {
	if body == nil {
		body = []schema.Block{}
	}
	doc, err := toJSONValue(body)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize artifact body").WithCause(err)
	}

	if err := v.blocks.Validate(doc); err != nil {
		return toResult(err).ToError()
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toResult flattens a jsonschema.ValidationError tree into located issues.
func toResult(err error) *schema.ValidationResult {
	res := &schema.ValidationResult{}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		res.Add("", err.Error())
		return res
	}
	collect(verr, res)
	if res.Valid() {
		res.Add("", verr.Error())
	}
	return res
}

func collect(verr *jsonschema.ValidationError, res *schema.ValidationResult) {
	if len(verr.Causes) == 0 {
		res.Add("/"+strings.Join(verr.InstanceLocation, "/"), verr.Error())
		return
	}
	for _, cause := range verr.Causes {
		collect(cause, res)
	}
}
