package benefit

import (
	"github.com/google/uuid"

	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// REVISION EPISODE - Groups one revision trigger with the periods it touches
// =============================================================================

// ChangeKind describes how a revision affects one included period.
type ChangeKind string

const (
	ChangeRecalculation ChangeKind = "recalculation"
	ChangeCancellation  ChangeKind = "cancellation"
)

// Episode is ephemeral: built, filled and published within one
// document-handling call, never persisted.
type Episode struct {
	reason  string
	trigger timeline.Date
	window  timeline.Period

	included []inclusion
}

type inclusion struct {
	period *BenefitPeriod
	change ChangeKind
}

// RevisionSummary is the single aggregate notification an episode emits.
type RevisionSummary struct {
	Reason           string
	TriggerDate      timeline.Date
	EarliestAffected timeline.Date
	PeriodIDs        []uuid.UUID
}

// BeginEpisode opens an episode. A nil window hint means "everything from
// the trigger date on".
func BeginEpisode(reason string, trigger timeline.Date, windowHint *timeline.Period) *Episode {
	window := timeline.Period{Start: trigger, End: trigger.AddYears(100)}
	if windowHint != nil {
		window = *windowHint
	}
	return &Episode{reason: reason, trigger: trigger, window: window}
}

// Window returns the affected window.
func (e *Episode) Window() timeline.Period { return e.window }

// Touches reports whether a period's computed span overlaps the window.
func (e *Episode) Touches(span timeline.Period) bool {
	if span.Start.IsZero() {
		return false
	}
	return e.window.Overlaps(span)
}

// Include records one reopened period. Each period is counted once.
func (e *Episode) Include(p *BenefitPeriod, change ChangeKind) {
	for _, in := range e.included {
		if in.period.ID == p.ID {
			return
		}
	}
	e.included = append(e.included, inclusion{period: p, change: change})
}

// Publish emits exactly one aggregate notification listing every included
// period and the earliest affected date. Publishing an empty episode is a
// no-op.
func (e *Episode) Publish(obs Observers) {
	if len(e.included) == 0 {
		return
	}
	earliest := e.included[0].period.Computed.Start
	ids := make([]uuid.UUID, 0, len(e.included))
	for _, in := range e.included {
		ids = append(ids, in.period.ID)
		if in.period.Computed.Start.Before(earliest) {
			earliest = in.period.Computed.Start
		}
	}
	if e.window.Start.After(earliest) {
		earliest = e.window.Start
	}
	obs.OnRevisionPublished(RevisionSummary{
		Reason:           e.reason,
		TriggerDate:      e.trigger,
		EarliestAffected: earliest,
		PeriodIDs:        ids,
	})
}
