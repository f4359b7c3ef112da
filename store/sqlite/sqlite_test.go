/*
sqlite_test.go - Specification Tests for the SQLite Store

PURPOSE:
  Verifies the durable round-trip: a settled aggregate written through the
  visitor comes back equivalent from the rows, across separate store
  instances on the same file. Also covers the admin queries and Reset.
*/
package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/document"
	"github.com/warp/benefit-engine/store/sqlite"
	"github.com/warp/benefit-engine/timeline"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"), benefit.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// settledPerson runs the January 2022 absence to the settled state so every
// table receives rows.
func settledPerson(t *testing.T, id string) *benefit.Person {
	t.Helper()
	person := benefit.NewPerson(id, benefit.DefaultConfig(), benefit.NopObservers{}, benefit.NopRequester{})

	clock := time.Date(2022, 1, 27, 8, 0, 0, 0, time.UTC)
	seq := 0
	base := func() document.Base {
		seq++
		clock = clock.Add(time.Minute)
		return document.Base{ID: fmt.Sprintf("%s-doc-%d", id, seq), PersonID: id, Received: clock}
	}
	send := func(doc benefit.Document) {
		t.Helper()
		if err := person.HandleDocument(doc); err != nil {
			t.Fatalf("handling %s: %v", doc.Kind(), err)
		}
	}

	jan := timeline.MustPeriod(timeline.NewDate(2022, time.January, 3), timeline.NewDate(2022, time.January, 26))
	send(&document.SickNote{Base: base(), Employer: "acme",
		Periods: []document.GradedPeriod{{Span: jan, Grade: decimal.NewFromInt(100)}}})
	send(&document.Application{Base: base(), Employer: "acme", Span: jan})
	send(&document.IncomeReport{Base: base(), Employer: "acme", FirstAbsence: jan.Start,
		MonthlyIncome: decimal.NewFromInt(52_000)})
	send(&document.EligibilityBasis{Base: base(), IsEligible: true})
	send(&document.OtherBenefitHistory{Base: base()})

	p := person.Periods[0]
	send(&document.SimulationResult{Base: base(), PeriodID: p.ID, OK: true})
	send(&document.PaymentApproval{Base: base(), PeriodID: p.ID, Approved: true, Automatic: true})
	send(&document.PaymentOutcome{Base: base(), PeriodID: p.ID, Accepted: true, Detail: "received"})
	send(&document.PaymentOutcome{Base: base(), PeriodID: p.ID, Accepted: true})

	if p.State != benefit.StateSettled {
		t.Fatalf("scenario did not settle, got %s", p.State)
	}
	return person
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	person := settledPerson(t, "anna")

	if err := store.Save(ctx, person); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx, "anna")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	p, q := person.Periods[0], loaded.Periods[0]
	if q.ID != p.ID || q.State != benefit.StateSettled || q.Employer != "acme" {
		t.Fatalf("period identity diverged: %+v", q)
	}
	if !q.TriggerDate.Equal(p.TriggerDate) || !q.DailyIncome.Equal(p.DailyIncome) {
		t.Error("claim anchor and economics must survive the rows")
	}
	if !q.Timeline.Equal(p.Timeline) {
		t.Error("timeline diverged across the rows")
	}
	if !q.Timeline.IsLocked(timeline.NewDate(2022, time.January, 10)) {
		t.Error("locked span lost across the rows")
	}
	if len(q.Settlements) != 1 {
		t.Fatalf("expected one settlement back, got %d", len(q.Settlements))
	}
	s, l := p.Settlements[0], q.Settlements[0]
	if l.ID != s.ID || l.Timeline.ConsumedDays != s.Timeline.ConsumedDays {
		t.Error("settlement counters diverged across the rows")
	}
	if len(l.PersonOrder.Lines) != len(s.PersonOrder.Lines) {
		t.Fatalf("payment lines diverged: %d vs %d", len(l.PersonOrder.Lines), len(s.PersonOrder.Lines))
	}
	if !l.PersonOrder.Lines[0].Amount.Equal(s.PersonOrder.Lines[0].Amount) {
		t.Error("line amounts diverged across the rows")
	}
	if len(q.Log) != len(p.Log) || len(q.DocumentIDs) != len(p.DocumentIDs) {
		t.Error("log or document ids lost across the rows")
	}
}

// TestRoundTripAcrossStoreInstances: a second store on the same file reads
// what the first wrote.
func TestRoundTripAcrossStoreInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	first, err := sqlite.New(path, benefit.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("open first store: %v", err)
	}
	person := settledPerson(t, "anna")
	if err := first.Save(ctx, person); err != nil {
		t.Fatalf("save: %v", err)
	}
	first.Close()

	second, err := sqlite.New(path, benefit.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("open second store: %v", err)
	}
	defer second.Close()

	loaded, err := second.Load(ctx, "anna")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Periods[0].State != benefit.StateSettled {
		t.Errorf("durable state diverged, got %s", loaded.Periods[0].State)
	}
}

func TestLoadUnknownPerson(t *testing.T) {
	store := newStore(t)
	if _, err := store.Load(context.Background(), "nobody"); err != benefit.ErrPersonNotFound {
		t.Fatalf("expected ErrPersonNotFound, got %v", err)
	}
}

// TestSaveReplacesWholesale: saving twice leaves one copy, not two.
func TestSaveReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	person := settledPerson(t, "anna")

	if err := store.Save(ctx, person); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.Save(ctx, person); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := store.Load(ctx, "anna")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Periods) != 1 || len(loaded.Periods[0].Settlements) != 1 {
		t.Errorf("resave duplicated rows: %d periods, %d settlements",
			len(loaded.Periods), len(loaded.Periods[0].Settlements))
	}
}

func TestCountPeriodsByState(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, id := range []string{"anna", "mik"} {
		if err := store.Save(ctx, settledPerson(t, id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	counts, err := store.CountPeriodsByState(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[string(benefit.StateSettled)] != 2 {
		t.Errorf("expected 2 settled periods, got %v", counts)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.Save(ctx, settledPerson(t, "anna")); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	ids, err := store.ListPersons(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected an empty store after reset, got %v", ids)
	}
}
