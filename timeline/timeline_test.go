/*
timeline_test.go - Specification Tests for the Day Timeline

PURPOSE:
  These tests serve as EXECUTABLE SPECIFICATIONS of the merge semantics.
  Replaying the same documents in any order must rebuild the identical
  timeline, so the merge tournament is exercised for idempotence,
  commutativity and associativity, and locked days are verified to stay
  immutable under merge.

READING THESE TESTS:
  Each test has:
  - A descriptive name that states the behavior
  - GIVEN/WHEN/THEN comments explaining the scenario
  - Clear assertions with explanatory messages
*/
package timeline_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

func date(y int, m time.Month, d int) timeline.Date {
	return timeline.NewDate(y, m, d)
}

func span(from, to timeline.Date) timeline.Period {
	return timeline.MustPeriod(from, to)
}

func source(kind timeline.SourceKind, docID string, receivedOffset time.Duration) timeline.Source {
	return timeline.Source{
		Kind:       kind,
		DocumentID: docID,
		ReceivedAt: time.Date(2022, 1, 27, 8, 0, 0, 0, time.UTC).Add(receivedOffset),
	}
}

func full() decimal.Decimal { return decimal.NewFromInt(100) }

// sickNoteFragment builds the fragment a sick-note would contribute.
func sickNoteFragment(docID string, p timeline.Period) *timeline.Timeline {
	t := timeline.New()
	t.SetPeriod(p, timeline.SickDay(full()), source(timeline.KindSickNote, docID, 0))
	return t
}

// =============================================================================
// 1. CLASSIFICATION
// =============================================================================

// TestSetPeriodUsesWeekendVariant: sick spans automatically classify
// Saturdays and Sundays as weekend sickness.
func TestSetPeriodUsesWeekendVariant(t *testing.T) {
	// GIVEN a sick-note covering 3-26 Jan 2022
	tl := sickNoteFragment("doc-1", span(date(2022, time.January, 3), date(2022, time.January, 26)))

	// THEN weekdays are sick and weekends are the weekend variant
	entry, ok := tl.At(date(2022, time.January, 19))
	if !ok || entry.Day.Kind != timeline.DaySick {
		t.Errorf("expected Wednesday 19 Jan to be %s, got %s", timeline.DaySick, entry.Day.Kind)
	}
	entry, ok = tl.At(date(2022, time.January, 22))
	if !ok || entry.Day.Kind != timeline.DaySickWeekend {
		t.Errorf("expected Saturday 22 Jan to be %s, got %s", timeline.DaySickWeekend, entry.Day.Kind)
	}
	if tl.Len() != 24 {
		t.Errorf("expected 24 classified days, got %d", tl.Len())
	}
}

// TestSpanAndSickBoundaries: Span, FirstSickDay and LastSickDay report the
// calendar extent of the record.
func TestSpanAndSickBoundaries(t *testing.T) {
	tl := sickNoteFragment("doc-1", span(date(2022, time.January, 3), date(2022, time.January, 26)))
	tl.Set(date(2022, time.January, 26), timeline.WorkDay(), source(timeline.KindApplication, "doc-2", time.Hour))

	sp, ok := tl.Span()
	if !ok || !sp.Start.Equal(date(2022, time.January, 3)) || !sp.End.Equal(date(2022, time.January, 26)) {
		t.Fatalf("expected span 2022-01-03..2022-01-26, got %v (ok=%v)", sp, ok)
	}

	first, _ := tl.FirstSickDay()
	if !first.Equal(date(2022, time.January, 3)) {
		t.Errorf("expected first sick day 3 Jan, got %s", first)
	}
	last, _ := tl.LastSickDay()
	if !last.Equal(date(2022, time.January, 25)) {
		t.Errorf("expected last sick day 25 Jan after the work-day override, got %s", last)
	}
}

// =============================================================================
// 2. MERGE TOURNAMENT
// =============================================================================

// TestMergeHigherPriorityWins: an application's work-day report overrides a
// sick-note's classification of the same day.
func TestMergeHigherPriorityWins(t *testing.T) {
	// GIVEN a sick-note fragment and an application reporting one day worked
	note := sickNoteFragment("note-1", span(date(2022, time.January, 3), date(2022, time.January, 7)))
	app := timeline.New()
	app.Set(date(2022, time.January, 5), timeline.WorkDay(), source(timeline.KindApplication, "app-1", time.Hour))

	// WHEN merged under the default ranking
	merged, conflicts := note.Merge(app, timeline.DefaultRanking())

	// THEN the application wins the contested day and nothing conflicts
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %d", len(conflicts))
	}
	entry, _ := merged.At(date(2022, time.January, 5))
	if entry.Day.Kind != timeline.DayWork {
		t.Errorf("expected the application's work day to win, got %s", entry.Day.Kind)
	}
	entry, _ = merged.At(date(2022, time.January, 4))
	if entry.Day.Kind != timeline.DaySick {
		t.Errorf("expected uncontested days to keep the sick-note, got %s", entry.Day.Kind)
	}
}

// TestMergeEqualPriorityKeepsNewest: two sick-notes about the same day keep
// the one received later.
func TestMergeEqualPriorityKeepsNewest(t *testing.T) {
	day := date(2022, time.January, 10)

	older := timeline.New()
	older.Set(day, timeline.SickDay(full()), source(timeline.KindSickNote, "note-1", 0))

	newer := timeline.New()
	newer.Set(day, timeline.SickDay(decimal.NewFromInt(50)), source(timeline.KindSickNote, "note-2", 2*time.Hour))

	merged, _ := older.Merge(newer, timeline.DefaultRanking())
	entry, _ := merged.At(day)
	if entry.Source.DocumentID != "note-2" {
		t.Errorf("expected the later sick-note to win, got %s", entry.Source.DocumentID)
	}
	if !entry.Day.Grade.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected grade 50 from the winning note, got %s", entry.Day.Grade)
	}
}

// TestMergeIsIdempotent: merging a fragment twice changes nothing.
func TestMergeIsIdempotent(t *testing.T) {
	note := sickNoteFragment("note-1", span(date(2022, time.January, 3), date(2022, time.January, 26)))

	once, _ := timeline.New().Merge(note, timeline.DefaultRanking())
	twice, _ := once.Merge(note, timeline.DefaultRanking())

	if !once.Equal(twice) {
		t.Error("merging the same fragment twice must be a no-op")
	}
}

// TestMergeIsCommutative: document arrival order does not matter.
func TestMergeIsCommutative(t *testing.T) {
	note := sickNoteFragment("note-1", span(date(2022, time.January, 3), date(2022, time.January, 26)))
	app := timeline.New()
	app.Set(date(2022, time.January, 5), timeline.WorkDay(), source(timeline.KindApplication, "app-1", time.Hour))
	app.Set(date(2022, time.January, 6), timeline.VacationDay(), source(timeline.KindApplication, "app-1", time.Hour))

	ab, _ := note.Merge(app, timeline.DefaultRanking())
	ba, _ := app.Merge(note, timeline.DefaultRanking())

	if !ab.Equal(ba) {
		t.Error("merge must produce the same timeline in either order")
	}
}

// TestMergeIsAssociative: grouping of merges does not matter.
func TestMergeIsAssociative(t *testing.T) {
	a := sickNoteFragment("note-1", span(date(2022, time.January, 3), date(2022, time.January, 14)))
	b := sickNoteFragment("note-2", span(date(2022, time.January, 10), date(2022, time.January, 26)))
	c := timeline.New()
	c.Set(date(2022, time.January, 12), timeline.WorkDay(), source(timeline.KindApplication, "app-1", time.Hour))

	ab, _ := a.Merge(b, timeline.DefaultRanking())
	abc1, _ := ab.Merge(c, timeline.DefaultRanking())

	bc, _ := b.Merge(c, timeline.DefaultRanking())
	abc2, _ := a.Merge(bc, timeline.DefaultRanking())

	if !abc1.Equal(abc2) {
		t.Error("merge must be associative")
	}
}

// =============================================================================
// 3. LOCKING
// =============================================================================

// TestMergeKeepsLockedDaysAndReportsConflicts: a settled sub-period is
// immutable; a disagreeing late document produces a conflict report instead
// of a silent change.
func TestMergeKeepsLockedDaysAndReportsConflicts(t *testing.T) {
	// GIVEN a settled timeline locked over its whole span
	settled := sickNoteFragment("note-1", span(date(2022, time.January, 3), date(2022, time.January, 7)))
	settled.Lock(span(date(2022, time.January, 3), date(2022, time.January, 7)))

	// WHEN a late application disputes one locked day
	late := timeline.New()
	late.Set(date(2022, time.January, 5), timeline.WorkDay(), source(timeline.KindApplication, "app-late", time.Hour))

	merged, conflicts := settled.Merge(late, timeline.DefaultRanking())

	// THEN the locked classification survives and the dispute is reported
	entry, _ := merged.At(date(2022, time.January, 5))
	if entry.Day.Kind != timeline.DaySick {
		t.Errorf("locked day must keep its classification, got %s", entry.Day.Kind)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if !conflicts[0].Date.Equal(date(2022, time.January, 5)) {
		t.Errorf("conflict reported for wrong date: %s", conflicts[0].Date)
	}
	if conflicts[0].Incoming.Kind != timeline.DayWork {
		t.Errorf("conflict must carry the rejected incoming day, got %s", conflicts[0].Incoming.Kind)
	}
}

// TestMergeAgreeingLockedDayIsNoConflict: re-reporting the same
// classification on a locked day is fine.
func TestMergeAgreeingLockedDayIsNoConflict(t *testing.T) {
	settled := sickNoteFragment("note-1", span(date(2022, time.January, 3), date(2022, time.January, 7)))
	settled.Lock(span(date(2022, time.January, 3), date(2022, time.January, 7)))

	agreeing := timeline.New()
	agreeing.Set(date(2022, time.January, 5), timeline.SickDay(full()), source(timeline.KindSickNote, "note-2", time.Hour))

	_, conflicts := settled.Merge(agreeing, timeline.DefaultRanking())
	if len(conflicts) != 0 {
		t.Errorf("agreeing incoming day must not conflict, got %d conflicts", len(conflicts))
	}
}

// TestMergeRespectsIncomingLocks: locks guard a day from whichever side of
// the merge they arrive on, so the tournament result stays commutative.
func TestMergeRespectsIncomingLocks(t *testing.T) {
	// GIVEN a settled timeline locked over its span and a disputing note
	settled := sickNoteFragment("note-1", span(date(2022, time.January, 3), date(2022, time.January, 7)))
	settled.Lock(span(date(2022, time.January, 3), date(2022, time.January, 7)))

	late := timeline.New()
	late.Set(date(2022, time.January, 5), timeline.WorkDay(), source(timeline.KindApplication, "app-late", time.Hour))

	// WHEN merged in both directions
	ab, abConflicts := settled.Merge(late, timeline.DefaultRanking())
	ba, baConflicts := late.Merge(settled, timeline.DefaultRanking())

	// THEN the locked classification wins either way
	if !ab.Equal(ba) {
		t.Error("merge must give the same timeline regardless of direction")
	}
	entry, _ := ba.At(date(2022, time.January, 5))
	if entry.Day.Kind != timeline.DaySick {
		t.Errorf("locked day must survive as the incoming side, got %s", entry.Day.Kind)
	}
	if len(abConflicts) != 1 || len(baConflicts) != 1 {
		t.Errorf("expected the dispute reported in both directions, got %d and %d",
			len(abConflicts), len(baConflicts))
	}
	if !ba.IsLocked(date(2022, time.January, 5)) {
		t.Error("the lock must carry into the merged timeline")
	}
}

// TestUnlockReopensWindow: after an authorized unlock the tournament applies
// again.
func TestUnlockReopensWindow(t *testing.T) {
	settled := sickNoteFragment("note-1", span(date(2022, time.January, 3), date(2022, time.January, 7)))
	settled.Lock(span(date(2022, time.January, 3), date(2022, time.January, 7)))

	settled.Unlock(span(date(2022, time.January, 3), date(2022, time.January, 7)))

	late := timeline.New()
	late.Set(date(2022, time.January, 5), timeline.WorkDay(), source(timeline.KindApplication, "app-late", time.Hour))
	merged, conflicts := settled.Merge(late, timeline.DefaultRanking())

	if len(conflicts) != 0 {
		t.Fatalf("unlocked days must not conflict, got %d", len(conflicts))
	}
	entry, _ := merged.At(date(2022, time.January, 5))
	if entry.Day.Kind != timeline.DayWork {
		t.Errorf("expected the application to win after unlock, got %s", entry.Day.Kind)
	}
}

// =============================================================================
// 4. TRIMMING
// =============================================================================

func TestTrimBounds(t *testing.T) {
	tl := sickNoteFragment("note-1", span(date(2022, time.January, 3), date(2022, time.January, 26)))

	left := tl.TrimLeft(date(2022, time.January, 10))
	if _, ok := left.At(date(2022, time.January, 9)); ok {
		t.Error("TrimLeft must drop days before the bound")
	}
	if _, ok := left.At(date(2022, time.January, 10)); !ok {
		t.Error("TrimLeft must keep the bound itself")
	}

	right := tl.TrimRight(date(2022, time.January, 10))
	if _, ok := right.At(date(2022, time.January, 11)); ok {
		t.Error("TrimRight must drop days after the bound")
	}
	if _, ok := right.At(date(2022, time.January, 10)); !ok {
		t.Error("TrimRight must keep the bound itself")
	}
}

// =============================================================================
// 5. CALENDAR PRIMITIVES
// =============================================================================

func TestPeriodRelations(t *testing.T) {
	jan := span(date(2022, time.January, 3), date(2022, time.January, 18))
	febAdjacent := span(date(2022, time.January, 19), date(2022, time.January, 26))
	farAway := span(date(2022, time.March, 1), date(2022, time.March, 10))

	if !jan.Adjacent(febAdjacent) {
		t.Error("periods meeting edge to edge must be adjacent")
	}
	if jan.Overlaps(febAdjacent) {
		t.Error("adjacent periods do not overlap")
	}
	if got := jan.GapTo(farAway); got != 41 {
		t.Errorf("expected 41 days gap from 18 Jan to 1 Mar, got %d", got)
	}
	if got := jan.GapTo(febAdjacent); got != 0 {
		t.Errorf("adjacent periods have zero gap, got %d", got)
	}
	if jan.Length() != 16 {
		t.Errorf("expected 16 days in 3-18 Jan, got %d", jan.Length())
	}
}

func TestInvalidPeriodRejected(t *testing.T) {
	_, err := timeline.NewPeriod(date(2022, time.January, 10), date(2022, time.January, 3))
	if err == nil {
		t.Fatal("expected an error for end before start")
	}
}

func TestDayValidation(t *testing.T) {
	bad := timeline.Day{Kind: timeline.DaySick, Grade: decimal.NewFromInt(120)}
	if err := bad.Validate(); err == nil {
		t.Error("grade above 100 must be invalid")
	}
	zero := timeline.Day{Kind: timeline.DaySick, Grade: decimal.Zero}
	if err := zero.Validate(); err == nil {
		t.Error("zero grade on a sick day must be invalid")
	}
	problem := timeline.Day{Kind: timeline.DayProblem}
	if err := problem.Validate(); err == nil {
		t.Error("problem day without a reason must be invalid")
	}
}
