package ai

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Response schemas. Gemini's ResponseSchema constrains generation server
// side, but responses still occasionally drift (truncation, stray prose
// around the JSON). Validating locally lets the caller trigger the one
// strict repair retry before falling back to heuristics.

const summaryResponseSchema = `{
  "type": "object",
  "required": ["mustHaveSkills", "niceToHaveSkills", "seniorityLevel", "keywordWeights"],
  "properties": {
    "mustHaveSkills": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "niceToHaveSkills": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "seniorityLevel": {"type": "string", "enum": ["junior", "mid", "senior", "staff+"]},
    "keywordWeights": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}
    }
  }
}`

const proposeResponseSchema = `{
  "type": "object",
  "required": ["text", "rationale"],
  "properties": {
    "text": {"type": "string", "minLength": 1},
    "rationale": {"type": "string"}
  }
}`

var (
	compiledSummarySchema = mustCompileSchema(summaryResponseSchema)
	compiledProposeSchema = mustCompileSchema(proposeResponseSchema)
)

func mustCompileSchema(doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("invalid response schema: %v", err))
	}
	return schema
}

// validateResponse checks a raw model response against a schema and
// returns a single error describing every violation.
func validateResponse(schema *gojsonschema.Schema, raw string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("response violates schema: %s", strings.Join(details, "; "))
}
