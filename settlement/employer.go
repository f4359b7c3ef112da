package settlement

import (
	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// EMPLOYER PERIOD - Statutory employer-responsibility window
// =============================================================================

// PriorUsage captures how much of the employer-period budget earlier
// absences already consumed, and when the last counted day was. The gap
// between LastCountedDay and a new absence decides whether the old budget
// continues or a fresh one starts.
type PriorUsage struct {
	DaysConsumed   int
	LastCountedDay *timeline.Date
}

// EmployerPeriod is the derived employer-responsibility window for one
// absence. A nil Span with a counted budget of zero means the budget was
// already spent: every day of the absence is immediately eligible for
// public payment.
type EmployerPeriod struct {
	Span        *timeline.Period
	DaysCounted int
}

// Exhausted reports whether no employer-responsibility day remains in this
// absence (either the span collapsed or the budget ran out inside it).
func (ep *EmployerPeriod) Exhausted() bool {
	return ep == nil || ep.Span == nil
}

// Covers reports whether a day falls inside the employer-responsibility span.
func (ep *EmployerPeriod) Covers(d timeline.Date) bool {
	return ep != nil && ep.Span != nil && ep.Span.Contains(d)
}

// ComputeEmployerPeriod walks the timeline from the first sick day and
// accumulates calendar days against the statutory budget.
//
// Counting rules:
//   - Every calendar day of an absence run counts, weekends included.
//   - A gap of at most Rules.ContinuationWindowDays between sick runs keeps
//     the same budget going; a longer gap would start a new absence, which
//     belongs to a different benefit period and is not this walk's concern.
//   - A prior absence within the window pre-consumes budget (PriorUsage).
//   - Days an employer already claimed as employer period count against the
//     budget like sick days, so a claimed window never restarts the walk
//     after its end.
//
// Returns nil when the timeline has no sick day at all.
func ComputeEmployerPeriod(t *timeline.Timeline, prior PriorUsage, rules Rules) *EmployerPeriod {
	first, ok := t.FirstSickDay()
	if !ok {
		return nil
	}
	if claimed, ok := firstClaimedDay(t); ok && claimed.Before(first) {
		first = claimed
	}

	budget := rules.EmployerPeriodDays
	if prior.LastCountedDay != nil &&
		timeline.DaysBetween(*prior.LastCountedDay, first) <= rules.ContinuationWindowDays {
		budget -= prior.DaysConsumed
	}
	if budget <= 0 {
		return &EmployerPeriod{Span: nil, DaysCounted: 0}
	}

	last, _ := t.LastSickDay()
	counted := 0
	gap := 0
	end := first

	for d := first; d.BeforeOrEqual(last) && counted < budget; d = d.AddDays(1) {
		e, present := t.At(d)
		inAbsence := present && e.Day.Kind != timeline.DayWork
		if !present || e.Day.Kind == timeline.DayUnknown {
			// A hole in the record: treat as part of the absence only while
			// within the continuation window.
			gap++
			if gap > rules.ContinuationWindowDays {
				break
			}
			continue
		}
		if !inAbsence {
			gap++
			if gap > rules.ContinuationWindowDays {
				break
			}
			continue
		}
		gap = 0
		counted++
		end = d
	}

	if counted == 0 {
		return &EmployerPeriod{Span: nil, DaysCounted: 0}
	}
	span := timeline.Period{Start: first, End: end}
	return &EmployerPeriod{Span: &span, DaysCounted: counted}
}

// firstClaimedDay returns the earliest day already classified as employer
// period, typically merged in from an income report's claim.
func firstClaimedDay(t *timeline.Timeline) (timeline.Date, bool) {
	for _, d := range t.Days() {
		if e, ok := t.At(d); ok && e.Day.Kind == timeline.DayEmployerPeriod {
			return d, true
		}
	}
	return timeline.Date{}, false
}
