package planner

import (
	"github.com/google/jsonschema-go/jsonschema"
)

const maxSubQuestions = 4

// classificationSchema is the strict contract of the classifier output
func classificationSchema() *jsonschema.Schema {
	nonEmpty := &jsonschema.Schema{Type: "string", MinLength: intPtr(1)}
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"classification"},
		Properties: map[string]*jsonschema.Schema{
			"classification": {
				Type: "string",
				Enum: []any{"atomic", "needs_decomposition", "clarification"},
			},
			"sub_questions": {
				Type:     "array",
				Items:    nonEmpty,
				MaxItems: intPtr(maxSubQuestions),
			},
			"clarification_question": {Types: []string{"string", "null"}},
			"key_concepts": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
			"confidence": {
				Type:    "number",
				Minimum: float64Ptr(0),
				Maximum: float64Ptr(1),
			},
			"reasoning": {Type: "string"},
		},
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

func intPtr(i int) *int {
	return &i
}

func float64Ptr(f float64) *float64 {
	return &f
}
