package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// envelopeSchema describes the shape every extraction response is asked for.
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["theory", "questions", "tasks"],
  "properties": {
    "logicalBlockInfo": {
      "type": "object",
      "properties": {"suggestedEndLine": {"type": "integer"}}
    },
    "theory": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "content"],
        "properties": {
          "examples": {"type": "array"},
          "complexity": {"type": "number"},
          "interviewRelevance": {"type": "number"}
        }
      }
    },
    "questions": {"type": "array", "items": {"type": "object"}},
    "tasks": {"type": "array", "items": {"type": "object"}}
  }
}`

var (
	envelopeOnce     sync.Once
	envelopeCompiled *jsonschema.Schema
	envelopeErr      error
)

func compiledEnvelope() (*jsonschema.Schema, error) {
	envelopeOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("envelope.json", strings.NewReader(envelopeSchema)); err != nil {
			envelopeErr = fmt.Errorf("failed to load envelope schema: %w", err)
			return
		}
		envelopeCompiled, envelopeErr = compiler.Compile("envelope.json")
	})
	return envelopeCompiled, envelopeErr
}

// ValidateEnvelope checks a recovered response against the envelope schema.
// A mismatch is informational: the entity sanitizers still normalize the data.
func ValidateEnvelope(r *Response) error {
	if r == nil || r.IsFallback() || r.Raw == "" {
		return nil
	}
	schema, err := compiledEnvelope()
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal([]byte(r.Raw), &doc); err != nil {
		return fmt.Errorf("failed to decode response for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("response does not match envelope schema: %w", err)
	}
	return nil
}
