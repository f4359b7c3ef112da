package timeline

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidDay is returned when a day classification violates its
	// payload invariants (sick day without grade, problem day without reason).
	ErrInvalidDay = errors.New("invalid day classification")

	// ErrLockedDate is returned when a merge tries to change a locked day.
	// Locked history only moves through an explicit unlock during revision.
	ErrLockedDate = errors.New("locked date conflict")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// LockedDateConflict reports one locked day that an incoming document
// disagreed with. Merge collects these instead of failing outright so the
// caller can escalate the whole document to manual handling.
type LockedDateConflict struct {
	Date     Date
	Existing Day
	Incoming Day
	Source   Source
}

func (c *LockedDateConflict) Error() string {
	return fmt.Sprintf("locked date %s: have %s, incoming %s from %s/%s",
		c.Date, c.Existing, c.Incoming, c.Source.Kind, c.Source.DocumentID)
}

func (c *LockedDateConflict) Unwrap() error { return ErrLockedDate }
