package services

import "fmt"

// ExtractionError means the document yielded no usable text.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

const (
	// GenerationTimeout: the call exceeded its wall-clock budget.
	GenerationTimeout = "timeout"
	// GenerationStatus: the provider answered with a non-success status.
	GenerationStatus = "status"
	// GenerationTransport: the request never completed.
	GenerationTransport = "transport"
	// GenerationMalformed: the provider payload could not be interpreted.
	GenerationMalformed = "malformed"
)

// GenerationError covers every way the external generation call can fail.
type GenerationError struct {
	Kind string
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("generation failed (%s)", e.Kind)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError means the generation response arrived but carried no
// usable completion.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid generation response: %s", e.Reason)
}
