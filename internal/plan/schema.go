package plan

import (
	"embed"
	"fmt"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Schema is the JSON Schema document a plan kind must satisfy. The same bytes
// constrain the provider's output and drive re-validation.
type Schema struct {
	Name string
	JSON []byte
}

// SchemaFor returns the embedded schema for kind.
func SchemaFor(kind Kind) (Schema, error) {
	var file string
	switch kind {
	case KindMeal:
		file = "schemas/meal_plan.schema.json"
	case KindWorkout:
		file = "schemas/workout_plan.schema.json"
	default:
		return Schema{}, fmt.Errorf("no schema for plan kind %q", kind)
	}

	b, err := schemaFS.ReadFile(file)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema %s: %w", file, err)
	}
	return Schema{Name: string(kind) + "_plan", JSON: b}, nil
}
