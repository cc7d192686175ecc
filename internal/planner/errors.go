package planner

import (
	"fmt"
	"strings"

	"ai-fitness-coach/internal/plan"
)

// UserMessage is the only failure text surfaces show to end users.
const UserMessage = "Sorry, we couldn't generate your plan. Please try again."

// GenerationExhaustedError is returned when every attempt failed with a
// transient provider error.
type GenerationExhaustedError struct {
	Kind     plan.Kind
	Attempts int
	Last     error
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("%s plan generation exhausted after %d attempts: %v", e.Kind, e.Attempts, e.Last)
}

func (e *GenerationExhaustedError) Unwrap() error { return e.Last }

// ValidationFailedError is returned when the provider's output does not pass
// re-validation. Issues holds every problem found.
type ValidationFailedError struct {
	Kind   plan.Kind
	Issues []plan.Issue
}

func (e *ValidationFailedError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.String())
	}
	return fmt.Sprintf("%s plan failed validation with %d issue(s): %s", e.Kind, len(e.Issues), strings.Join(msgs, "; "))
}

// ProviderConfigError is returned when the provider rejects the request in a
// way retrying cannot fix, such as a bad API key or an invalid schema.
type ProviderConfigError struct {
	Err error
}

func (e *ProviderConfigError) Error() string {
	return fmt.Sprintf("provider rejected the request: %v", e.Err)
}

func (e *ProviderConfigError) Unwrap() error { return e.Err }
