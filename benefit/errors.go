/*
errors.go - Error taxonomy for the benefit period engine

PURPOSE:
  One place for the failure categories the engine distinguishes:

  1. Validation warnings  - recorded on the period log, never block progress
  2. Functional rejection - fatal to the current period, forces the
     exception state, may cascade to dependent periods
  3. Logical inconsistency - invariant violation, always surfaced, never
     silently recovered
  4. Locked date conflict - merge against finalized history (timeline pkg)

PROPAGATION:
  Settlement incompleteness is NOT an error: it is recoverable locally and
  turns into a data request. Unexpected documents are not recoverable and
  transition the period to manual handling with the accumulated log.
*/
package benefit

import (
	"errors"
	"fmt"

	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFunctionalRejection marks business failures that end the period's
	// automatic processing.
	ErrFunctionalRejection = errors.New("functional rejection")

	// ErrLogicalInconsistency marks invariant violations. These indicate a
	// programming error and are always surfaced.
	ErrLogicalInconsistency = errors.New("logical inconsistency")

	// ErrUnexpectedDocument is the functional rejection raised when a
	// document kind arrives in a state that has no transition for it.
	ErrUnexpectedDocument = errors.New("unexpected document for state")

	// ErrPeriodNotFound is returned when a document targets an unknown period.
	ErrPeriodNotFound = errors.New("benefit period not found")

	// ErrPersonNotFound is returned by stores for unknown persons.
	ErrPersonNotFound = errors.New("person not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RejectionError carries the reason a period was functionally rejected.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return "rejected: " + e.Reason }
func (e *RejectionError) Unwrap() error { return ErrFunctionalRejection }

// InconsistencyError carries the violated invariant.
type InconsistencyError struct {
	Invariant string
}

func (e *InconsistencyError) Error() string { return "inconsistency: " + e.Invariant }
func (e *InconsistencyError) Unwrap() error { return ErrLogicalInconsistency }

// UnexpectedDocumentError reports an out-of-workflow-order arrival.
type UnexpectedDocumentError struct {
	State State
	Kind  timeline.SourceKind
}

func (e *UnexpectedDocumentError) Error() string {
	return fmt.Sprintf("unexpected document %s in state %s", e.Kind, e.State)
}

func (e *UnexpectedDocumentError) Unwrap() error { return ErrUnexpectedDocument }

// IsFunctional reports whether the error is a functional rejection.
func IsFunctional(err error) bool { return errors.Is(err, ErrFunctionalRejection) }

// IsInconsistency reports whether the error is an invariant violation.
func IsInconsistency(err error) bool { return errors.Is(err, ErrLogicalInconsistency) }
