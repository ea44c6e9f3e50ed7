package worker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// predictRequestSchema describes the /predict body.
const predictRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["features"],
  "properties": {
    "features": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "number"}
    },
    "timestamp": {"type": "string", "format": "date-time"}
  }
}`

var predictSchema = mustCompileSchema(predictRequestSchema)

func mustCompileSchema(src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile([]byte(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

// validatePredictBody returns nil or a message naming every violation.
func validatePredictBody(body []byte) error {
	result := predictSchema.ValidateJSON(body)
	if result.IsValid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors))
	for field, e := range result.Errors {
		msgs = append(msgs, fmt.Sprintf("%v: %v", field, e))
	}
	sort.Strings(msgs)
	return fmt.Errorf("invalid request body: %s", strings.Join(msgs, "; "))
}
