package modelrouter

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ferro-labs/model-router/providers"
)

// validateTools checks that every tool's parameter schema is a valid JSON
// Schema document. Runs before dispatch so a malformed schema surfaces as
// KindValidationFailed instead of an opaque provider rejection.
func validateTools(tools []providers.Tool) error {
	for _, t := range tools {
		if t.Name == "" {
			return fmt.Errorf("tool with empty name")
		}
		if len(t.Parameters) == 0 {
			continue
		}
		if _, err := jsonschema.CompileString(t.Name+".json", string(t.Parameters)); err != nil {
			return fmt.Errorf("tool %q: invalid parameter schema: %w", t.Name, err)
		}
	}
	return nil
}

// validateResponseSchema checks a structured-output response format schema.
func validateResponseSchema(rf *providers.ResponseFormat) error {
	if rf == nil || len(rf.Schema) == 0 {
		return nil
	}
	if _, err := jsonschema.CompileString("response_format.json", string(rf.Schema)); err != nil {
		return fmt.Errorf("response format: invalid schema: %w", err)
	}
	return nil
}
