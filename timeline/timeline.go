/*
Package timeline implements the day-classified sickness calendar.

PURPOSE:
  A Timeline is the authoritative day-by-day record of a person's status
  during a sick-leave claim. Competing reports about the same day (a
  sick-note says sick, the application says the person worked) are resolved
  by a deterministic tournament so that replaying the same documents in any
  order always rebuilds the identical timeline.

KEY CONCEPTS:
  - Date/Period:  day-granularity calendar primitives
  - Day:          tagged-union classification of one day (day.go)
  - Source:       provenance of a classification, used only for tie-breaks
  - Ranking:      per-document-kind priority table (source.go)
  - Timeline:     ordered date -> (Day, Source) map with locked sub-periods

MERGE SEMANTICS:
  Merge is pure and commutative under a fixed Ranking: higher priority wins,
  equal priority keeps the most recently received source, and residual ties
  fall back to document id. Locked days never change; a disagreeing incoming
  day produces a LockedDateConflict report instead of a silent drop.

SEE ALSO:
  - source.go: Ranking and the tournament rule
  - day.go:    the Day tagged union and its invariants
*/
package timeline

import (
	"sort"
)

// Entry is one classified day plus its provenance.
type Entry struct {
	Day    Day
	Source Source
}

// Timeline is an ordered map of days to classifications. The zero value is
// not usable; call New.
type Timeline struct {
	days   map[Date]Entry
	locked []Period
}

func New() *Timeline {
	return &Timeline{days: make(map[Date]Entry)}
}

// Set records a classification for one day, replacing whatever is there.
// Building a fragment from a single document uses Set; combining fragments
// from different documents must go through Merge.
func (t *Timeline) Set(d Date, day Day, src Source) {
	t.days[d] = Entry{Day: day, Source: src}
}

// SetPeriod classifies every day in the period. Sick classifications switch
// to the weekend variant on Saturdays and Sundays automatically when the
// caller passes a DaySick day.
func (t *Timeline) SetPeriod(p Period, day Day, src Source) {
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		v := day
		if day.Kind == DaySick && d.IsWeekend() {
			v = SickWeekendDay(day.Grade)
		}
		t.days[d] = Entry{Day: v, Source: src}
	}
}

// At returns the classification for a day.
func (t *Timeline) At(d Date) (Entry, bool) {
	e, ok := t.days[d]
	return e, ok
}

// Len returns the number of classified days.
func (t *Timeline) Len() int { return len(t.days) }

// Days returns all classified days in calendar order.
func (t *Timeline) Days() []Date {
	days := make([]Date, 0, len(t.days))
	for d := range t.days {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Span returns the smallest period covering every classified day.
func (t *Timeline) Span() (Period, bool) {
	days := t.Days()
	if len(days) == 0 {
		return Period{}, false
	}
	return Period{Start: days[0], End: days[len(days)-1]}, true
}

// FirstSickDay returns the earliest day classified as sick.
func (t *Timeline) FirstSickDay() (Date, bool) {
	for _, d := range t.Days() {
		if t.days[d].Day.IsSick() {
			return d, true
		}
	}
	return Date{}, false
}

// LastSickDay returns the latest day classified as sick.
func (t *Timeline) LastSickDay() (Date, bool) {
	days := t.Days()
	for i := len(days) - 1; i >= 0; i-- {
		if t.days[days[i]].Day.IsSick() {
			return days[i], true
		}
	}
	return Date{}, false
}

// HasSickDay reports whether any day is classified as sick.
func (t *Timeline) HasSickDay() bool {
	for _, e := range t.days {
		if e.Day.IsSick() {
			return true
		}
	}
	return false
}

// =============================================================================
// LOCKING - Finalized sub-periods are immutable under merge
// =============================================================================

// Lock marks a sub-period as finalized. Locked days keep their current
// classification until an authorized revision unlocks them.
func (t *Timeline) Lock(p Period) {
	t.locked = append(t.locked, p)
}

// Unlock removes locks overlapping the period. Only revision handling is
// allowed to call this.
func (t *Timeline) Unlock(p Period) {
	kept := t.locked[:0]
	for _, l := range t.locked {
		if !l.Overlaps(p) {
			kept = append(kept, l)
		}
	}
	t.locked = kept
}

// IsLocked reports whether a day lies inside a locked sub-period.
func (t *Timeline) IsLocked(d Date) bool {
	for _, l := range t.locked {
		if l.Contains(d) {
			return true
		}
	}
	return false
}

// LockedPeriods returns the locked sub-periods.
func (t *Timeline) LockedPeriods() []Period {
	out := make([]Period, len(t.locked))
	copy(out, t.locked)
	return out
}

// =============================================================================
// MERGE - Deterministic tournament between competing classifications
// =============================================================================

// Merge combines t with incoming under the ranking and returns a new
// timeline; neither input is modified. For every day present in either
// input the ranking's tournament picks a winner. Locked days are excluded
// from the tournament on either side: the locked entry is kept and a
// disagreeing counterpart raises a LockedDateConflict so the caller can
// escalate. A day locked on both sides keeps the receiver's entry.
func (t *Timeline) Merge(incoming *Timeline, ranking Ranking) (*Timeline, []LockedDateConflict) {
	out := New()
	out.locked = append(out.locked, t.locked...)
	out.locked = append(out.locked, incoming.locked...)

	var conflicts []LockedDateConflict

	for d, e := range t.days {
		out.days[d] = e
	}
	for d, in := range incoming.days {
		existing, ok := out.days[d]
		if !ok {
			out.days[d] = in
			continue
		}
		if t.IsLocked(d) {
			if !existing.Day.Equal(in.Day) {
				conflicts = append(conflicts, LockedDateConflict{
					Date:     d,
					Existing: existing.Day,
					Incoming: in.Day,
					Source:   in.Source,
				})
			}
			continue
		}
		if incoming.IsLocked(d) {
			if !existing.Day.Equal(in.Day) {
				conflicts = append(conflicts, LockedDateConflict{
					Date:     d,
					Existing: in.Day,
					Incoming: existing.Day,
					Source:   existing.Source,
				})
			}
			out.days[d] = in
			continue
		}
		out.days[d] = ranking.pick(existing, in)
	}

	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Date.Before(conflicts[j].Date) })
	return out, conflicts
}

// =============================================================================
// TRIMMING - Used when a period boundary moves
// =============================================================================

// TrimLeft returns a copy without days before bound.
func (t *Timeline) TrimLeft(bound Date) *Timeline {
	out := New()
	out.locked = append(out.locked, t.locked...)
	for d, e := range t.days {
		if d.AfterOrEqual(bound) {
			out.days[d] = e
		}
	}
	return out
}

// TrimRight returns a copy without days after bound.
func (t *Timeline) TrimRight(bound Date) *Timeline {
	out := New()
	out.locked = append(out.locked, t.locked...)
	for d, e := range t.days {
		if d.BeforeOrEqual(bound) {
			out.days[d] = e
		}
	}
	return out
}

// Clone returns a deep copy.
func (t *Timeline) Clone() *Timeline {
	out := New()
	out.locked = append(out.locked, t.locked...)
	for d, e := range t.days {
		out.days[d] = e
	}
	return out
}

// Equal reports whether two timelines carry identical classifications and
// sources for the same set of days.
func (t *Timeline) Equal(other *Timeline) bool {
	if len(t.days) != len(other.days) {
		return false
	}
	for d, e := range t.days {
		oe, ok := other.days[d]
		if !ok || !e.Day.Equal(oe.Day) || e.Source != oe.Source {
			return false
		}
	}
	return true
}
