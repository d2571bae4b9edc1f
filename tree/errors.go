package tree

import (
	"errors"
	"fmt"

	"github.com/jacentio/syllabus/store"
)

var (
	// ErrInvalidInput is returned for malformed requests; nothing was written.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a referenced entity does not exist; nothing was written.
	ErrNotFound = errors.New("not found")

	// ErrConflictScope is returned when a reorder batch spans more than one
	// sibling scope; nothing was written.
	ErrConflictScope = errors.New("entities do not share one parent scope")

	// ErrPartialCascade is matched by *PartialCascadeError.
	ErrPartialCascade = errors.New("status cascade partially applied")

	// ErrPartialReorder is matched by *PartialReorderError.
	ErrPartialReorder = errors.New("reorder partially applied")
)

// PartialCascadeError reports a cascade that failed below the root.
// Generations already written stay written.
type PartialCascadeError struct {
	// Kind and Depth locate the generation whose update failed.
	Kind  store.Kind
	Depth int

	// Completed holds the generations fully applied before the failure.
	Completed []GenerationResult

	Err error
}

func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("status cascade stopped at %s (depth %d) after %d generations: %v",
		e.Kind, e.Depth, len(e.Completed), e.Err)
}

func (e *PartialCascadeError) Unwrap() []error {
	return []error{ErrPartialCascade, e.Err}
}

// PartialReorderError reports a reorder that failed after writing.
// When Phase is 2 the batch holds temporary order numbers; retrying the
// same batch restores it.
type PartialReorderError struct {
	Phase int

	// Applied counts the documents written in the failing phase.
	Applied int

	Err error
}

func (e *PartialReorderError) Error() string {
	return fmt.Sprintf("reorder failed in phase %d after %d writes: %v", e.Phase, e.Applied, e.Err)
}

func (e *PartialReorderError) Unwrap() []error {
	return []error{ErrPartialReorder, e.Err}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
