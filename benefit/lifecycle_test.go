/*
lifecycle_test.go - Specification Tests for the Benefit Period Lifecycle

PURPOSE:
  Drives whole document streams through the Person aggregate and asserts
  the resulting states, settlements and notifications: the happy path to
  settled, functional rejection, extension of a finished claim,
  multi-employer lock-step, dwell timeouts, terminal-state swallowing and
  the revision episode.

READING THESE TESTS:
  Each test has:
  - A descriptive name that states the behavior
  - GIVEN/WHEN/THEN comments explaining the scenario
  - Clear assertions with explanatory messages

  The flow helper plays the role of the surrounding services: it feeds
  documents in arrival order with realistic received timestamps.
*/
package benefit_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/document"
	"github.com/warp/benefit-engine/settlement"
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

// recorder captures the outbound notifications a stream produces.
type recorder struct {
	benefit.NopObservers

	rejections  []string
	revisions   []benefit.RevisionSummary
	settlements int
}

func (r *recorder) OnPeriodRejected(_ uuid.UUID, reason string) {
	r.rejections = append(r.rejections, reason)
}

func (r *recorder) OnRevisionPublished(summary benefit.RevisionSummary) {
	r.revisions = append(r.revisions, summary)
}

func (r *recorder) OnSettlementProduced(uuid.UUID, *settlement.Settlement) {
	r.settlements++
}

// needsRecorder counts the outbound data requests per kind.
type needsRecorder struct {
	benefit.NopRequester

	requested map[benefit.NeedKind]int
}

func newNeedsRecorder() *needsRecorder {
	return &needsRecorder{requested: map[benefit.NeedKind]int{}}
}

func (n *needsRecorder) RequestData(_ uuid.UUID, kind benefit.NeedKind, _ map[string]string) {
	n.requested[kind]++
}

// flow feeds one person's document stream in arrival order. The clock
// starts just after the January 2022 sickness window so the statutory
// time bar stays clear of the scenario dates.
type flow struct {
	t      *testing.T
	person *benefit.Person
	obs    *recorder
	clock  time.Time
	seq    int
}

func newFlow(t *testing.T) *flow {
	return newFlowWith(t, benefit.DefaultConfig())
}

func newFlowWith(t *testing.T, cfg benefit.Config) *flow {
	return newFlowWithNeeds(t, cfg, benefit.NopRequester{})
}

func newFlowWithNeeds(t *testing.T, cfg benefit.Config, needs benefit.DataRequester) *flow {
	obs := &recorder{}
	return &flow{
		t:      t,
		person: benefit.NewPerson("person-1", cfg, obs, needs),
		obs:    obs,
		clock:  time.Date(2022, 1, 27, 8, 0, 0, 0, time.UTC),
	}
}

func (f *flow) base() document.Base {
	f.seq++
	f.clock = f.clock.Add(time.Minute)
	return document.Base{ID: fmt.Sprintf("doc-%d", f.seq), PersonID: f.person.ID, Received: f.clock}
}

func (f *flow) send(doc benefit.Document) {
	f.t.Helper()
	if err := f.person.HandleDocument(doc); err != nil {
		f.t.Fatalf("handling %s: %v", doc.Kind(), err)
	}
}

func (f *flow) requireState(p *benefit.BenefitPeriod, want benefit.State) {
	f.t.Helper()
	if p.State != want {
		f.t.Fatalf("expected state %s, got %s", want, p.State)
	}
}

func (f *flow) sickNote(employer string, sp timeline.Period) *document.SickNote {
	return &document.SickNote{
		Base:     f.base(),
		Employer: employer,
		Periods:  []document.GradedPeriod{{Span: sp, Grade: decimal.NewFromInt(100)}},
	}
}

func (f *flow) application(employer string, sp timeline.Period) *document.Application {
	return &document.Application{Base: f.base(), Employer: employer, Span: sp}
}

func (f *flow) incomeReport(employer string, firstAbsence timeline.Date, monthly int64) *document.IncomeReport {
	return &document.IncomeReport{
		Base:          f.base(),
		Employer:      employer,
		FirstAbsence:  firstAbsence,
		MonthlyIncome: decimal.NewFromInt(monthly),
	}
}

// incomeReportWithClaim is the income report variant where the employer
// reports which days it already covered as employer period.
func (f *flow) incomeReportWithClaim(employer string, firstAbsence timeline.Date, monthly int64, claim timeline.Period) *document.IncomeReport {
	report := f.incomeReport(employer, firstAbsence, monthly)
	report.EmployerPeriods = []timeline.Period{claim}
	return report
}

func (f *flow) eligibility() *document.EligibilityBasis {
	return &document.EligibilityBasis{Base: f.base(), IsEligible: true}
}

func (f *flow) history(consumed int) *document.OtherBenefitHistory {
	return &document.OtherBenefitHistory{Base: f.base(), ConsumedDays: consumed}
}

// intake sends sick-note, application and income report for one absence.
func (f *flow) intake(employer string, sp timeline.Period, monthly int64) {
	f.t.Helper()
	f.send(f.sickNote(employer, sp))
	f.send(f.application(employer, sp))
	f.send(f.incomeReport(employer, sp.Start, monthly))
}

// approveAndPay walks a period from awaiting-simulation to its terminal
// settled state through the two-phase disbursement protocol.
func (f *flow) approveAndPay(p *benefit.BenefitPeriod) {
	f.t.Helper()
	f.send(&document.SimulationResult{Base: f.base(), PeriodID: p.ID, OK: true})
	f.send(&document.PaymentApproval{Base: f.base(), PeriodID: p.ID, Approved: true, Automatic: true})
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: true, Detail: "received"})
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: true})
}

// settleJanuary runs the canonical absence 3-26 Jan 2022 to StateSettled.
func settleJanuary(f *flow) *benefit.BenefitPeriod {
	f.t.Helper()
	f.intake("acme", span(date(2022, time.January, 3), date(2022, time.January, 26)), 52_000)
	p := f.person.Periods[0]
	f.send(f.eligibility())
	f.send(f.history(0))
	f.requireState(p, benefit.StateAwaitingSimulation)
	f.approveAndPay(p)
	f.requireState(p, benefit.StateSettled)
	return p
}

// =============================================================================
// 1. HAPPY PATH
// =============================================================================

// TestHappyPathToSettled: a complete document stream walks one period from
// intake through eligibility, history, settlement, approval and the
// two-phase disbursement into the settled state.
func TestHappyPathToSettled(t *testing.T) {
	f := newFlow(t)
	jan := span(date(2022, time.January, 3), date(2022, time.January, 26))

	// GIVEN a sick-note opening the period
	f.send(f.sickNote("acme", jan))
	if len(f.person.Periods) != 1 {
		t.Fatalf("expected one period, got %d", len(f.person.Periods))
	}
	p := f.person.Periods[0]
	f.requireState(p, benefit.StateAwaitingApplicationAndIncomeReport)
	if !p.TriggerDate.Equal(date(2022, time.January, 3)) {
		t.Errorf("the first sick day anchors the claim, got %s", p.TriggerDate)
	}

	// WHEN the remaining intake documents arrive
	f.send(f.application("acme", jan))
	f.requireState(p, benefit.StateAwaitingIncomeReport)
	f.send(f.incomeReport("acme", jan.Start, 52_000))
	f.requireState(p, benefit.StateAwaitingEligibilityBasis)
	if !p.DailyIncome.Equal(decimal.NewFromInt(2400)) {
		t.Errorf("expected daily income 2400 from monthly 52000, got %s", p.DailyIncome)
	}

	// AND eligibility and history resolve
	f.send(f.eligibility())
	f.requireState(p, benefit.StateAwaitingHistory)
	f.send(f.history(0))
	f.requireState(p, benefit.StateAwaitingSimulation)

	// THEN the settlement pays six weekdays after the employer period
	s := p.LastSettlement()
	if s == nil {
		t.Fatal("expected a settlement after history")
	}
	if s.Timeline.ConsumedDays != 6 {
		t.Errorf("expected 6 consumed benefit days, got %d", s.Timeline.ConsumedDays)
	}
	lines := s.PersonOrder.Active()
	if len(lines) != 1 || !lines[0].Amount.Equal(decimal.NewFromInt(2400)) {
		t.Fatalf("expected one active line at 2400, got %v", lines)
	}
	if !lines[0].From.Equal(date(2022, time.January, 19)) || !lines[0].To.Equal(date(2022, time.January, 26)) {
		t.Errorf("expected the line 19-26 Jan, got %s-%s", lines[0].From, lines[0].To)
	}

	// AND approval plus the two-phase outcome settles the period
	f.send(&document.SimulationResult{Base: f.base(), PeriodID: p.ID, OK: true})
	f.requireState(p, benefit.StateAwaitingApproval)
	f.send(&document.PaymentApproval{Base: f.base(), PeriodID: p.ID, Approved: true, Automatic: true})
	f.requireState(p, benefit.StateSendingPayment)
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: true, Detail: "received"})
	f.requireState(p, benefit.StateAwaitingPaymentOutcome)
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: true})
	f.requireState(p, benefit.StateSettled)

	// AND the settled span is finalized against silent rewrites
	if !p.Timeline.IsLocked(date(2022, time.January, 10)) {
		t.Error("settling must lock the span")
	}
	if f.obs.settlements != 1 {
		t.Errorf("expected exactly one settlement notification, got %d", f.obs.settlements)
	}
}

// TestIncomeReportClaimsEmployerPeriod: when the employer reports the
// 16-day window it covered, those days outrank the sick note in the merge —
// and the derived window must not restart after them. The public payer
// still owes the six weekdays that follow.
func TestIncomeReportClaimsEmployerPeriod(t *testing.T) {
	f := newFlow(t)
	jan := span(date(2022, time.January, 3), date(2022, time.January, 26))

	// GIVEN an intake whose income report claims the employer period
	f.send(f.sickNote("acme", jan))
	f.send(f.application("acme", jan))
	f.send(f.incomeReportWithClaim("acme", jan.Start, 52_000,
		span(date(2022, time.January, 3), date(2022, time.January, 18))))
	p := f.person.Periods[0]

	// WHEN eligibility and history resolve
	f.send(f.eligibility())
	f.send(f.history(0))
	f.requireState(p, benefit.StateAwaitingSimulation)

	// THEN the claimed days spend the budget instead of restarting it
	if p.EmployerPeriod == nil || p.EmployerPeriod.Span == nil {
		t.Fatal("expected a derived employer period")
	}
	if !p.EmployerPeriod.Span.End.Equal(date(2022, time.January, 18)) {
		t.Errorf("expected the employer period to end 18 Jan, got %s", p.EmployerPeriod.Span.End)
	}

	// AND the settlement pays the same six weekdays as the derived variant
	s := p.LastSettlement()
	if s == nil {
		t.Fatal("expected a settlement after history")
	}
	if s.Timeline.ConsumedDays != 6 {
		t.Errorf("expected 6 consumed benefit days, got %d", s.Timeline.ConsumedDays)
	}
	lines := s.PersonOrder.Active()
	if len(lines) != 1 || !lines[0].From.Equal(date(2022, time.January, 19)) || !lines[0].To.Equal(date(2022, time.January, 26)) {
		t.Fatalf("expected one line 19-26 Jan, got %v", lines)
	}
	if !s.HasPayableLines() {
		t.Fatal("expected payable lines after the claimed window")
	}

	// AND the disbursement settles the period with payment
	f.approveAndPay(p)
	f.requireState(p, benefit.StateSettled)
}

// TestFlaggedSimulationNeedsManualApproval: a simulation verdict with a
// detail routes the period to a human approver.
func TestFlaggedSimulationNeedsManualApproval(t *testing.T) {
	f := newFlow(t)
	f.intake("acme", span(date(2022, time.January, 3), date(2022, time.January, 26)), 52_000)
	p := f.person.Periods[0]
	f.send(f.eligibility())
	f.send(f.history(0))

	f.send(&document.SimulationResult{Base: f.base(), PeriodID: p.ID, OK: true, Detail: "amount above threshold"})

	f.requireState(p, benefit.StateAwaitingManualApproval)
}

// TestPaymentRetryReissuesDispatch: a rejected disbursement frees the
// outstanding dispatch request, so the manual retry sends a fresh one
// instead of being swallowed by the idempotency guard.
func TestPaymentRetryReissuesDispatch(t *testing.T) {
	needs := newNeedsRecorder()
	f := newFlowWithNeeds(t, benefit.DefaultConfig(), needs)
	f.intake("acme", span(date(2022, time.January, 3), date(2022, time.January, 26)), 52_000)
	p := f.person.Periods[0]
	f.send(f.eligibility())
	f.send(f.history(0))
	f.send(&document.SimulationResult{Base: f.base(), PeriodID: p.ID, OK: true})
	f.send(&document.PaymentApproval{Base: f.base(), PeriodID: p.ID, Approved: true, Automatic: true})
	f.requireState(p, benefit.StateSendingPayment)

	// WHEN the bank rejects the disbursement
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: false, Detail: "account closed"})
	f.requireState(p, benefit.StatePaymentFailed)
	if p.Outstanding(benefit.NeedPaymentDispatch) {
		t.Fatal("a failed dispatch must not stay outstanding")
	}

	// AND a case worker retries
	f.send(&document.ManualOverride{Base: f.base(), PeriodID: p.ID, Actor: "caseworker-7"})

	// THEN a second dispatch goes out and the flow completes
	f.requireState(p, benefit.StateSendingPayment)
	if got := needs.requested[benefit.NeedPaymentDispatch]; got != 2 {
		t.Fatalf("expected 2 dispatch requests, got %d", got)
	}
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: true, Detail: "received"})
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: true})
	f.requireState(p, benefit.StateSettled)
}

// TestMissingIncomeLoopsBackForData: an absence without an income report
// settles incomplete and asks for the missing input instead of failing.
func TestMissingIncomeLoopsBackForData(t *testing.T) {
	f := newFlow(t)
	jan := span(date(2022, time.January, 3), date(2022, time.January, 26))
	f.send(f.sickNote("acme", jan))
	f.send(f.application("acme", jan))
	f.send(f.incomeReport("acme", jan.Start, 0))
	p := f.person.Periods[0]
	f.send(f.eligibility())

	// WHEN history arrives with no economic basis on file
	f.send(f.history(0))

	// THEN the incomplete settlement sends the period back for the income
	f.requireState(p, benefit.StateAwaitingIncomeReport)
	if s := p.LastSettlement(); s == nil || !s.Incomplete {
		t.Fatal("expected an incomplete settlement to be recorded")
	}
	if !p.Outstanding(benefit.NeedIncomeReport) {
		t.Error("the period must request the missing income report")
	}

	// AND a late income report completes the claim: eligibility is already
	// resolved for the trigger date, so the period goes straight to history
	f.send(f.incomeReport("acme", jan.Start, 52_000))
	f.requireState(p, benefit.StateAwaitingHistory)
}

// =============================================================================
// 2. REJECTION AND EXCEPTIONS
// =============================================================================

// TestIneligiblePersonIsRejected: a negative eligibility basis ends the
// period with the carried reason.
func TestIneligiblePersonIsRejected(t *testing.T) {
	f := newFlow(t)
	f.intake("acme", span(date(2022, time.January, 3), date(2022, time.January, 26)), 52_000)
	p := f.person.Periods[0]

	f.send(&document.EligibilityBasis{
		Base:            f.base(),
		IsEligible:      false,
		RejectionReason: "not employed long enough before the sickness",
	})

	f.requireState(p, benefit.StateRejected)
	if len(f.obs.rejections) != 1 || f.obs.rejections[0] != "not employed long enough before the sickness" {
		t.Errorf("expected the rejection reason to be published, got %v", f.obs.rejections)
	}
}

// TestAssessmentOverrideAbsorbsDays: the override closing an eligibility
// assessment may reclassify days; those reclassifications must land on the
// timeline before the settlement runs.
func TestAssessmentOverrideAbsorbsDays(t *testing.T) {
	f := newFlow(t)
	f.intake("acme", span(date(2022, time.January, 3), date(2022, time.January, 26)), 52_000)
	p := f.person.Periods[0]

	// GIVEN an eligibility basis that demands a human look
	f.send(&document.EligibilityBasis{Base: f.base(), IsEligible: true, NeedsAssessment: true})
	f.requireState(p, benefit.StateAwaitingEligibilityAssessment)

	// WHEN the assessing case worker also reports a worked day
	f.send(&document.ManualOverride{
		Base:     f.base(),
		PeriodID: p.ID,
		Actor:    "caseworker-7",
		Days:     []document.OverrideDay{{Date: date(2022, time.January, 24), Kind: timeline.DayWork}},
	})
	f.requireState(p, benefit.StateAwaitingHistory)

	// THEN the override is on the timeline, not discarded
	entry, ok := p.Timeline.At(date(2022, time.January, 24))
	if !ok || entry.Day.Kind != timeline.DayWork {
		t.Fatalf("expected 24 Jan reclassified as work, got %v", entry.Day.Kind)
	}

	// AND the settlement pays one weekday less
	f.send(f.history(0))
	s := p.LastSettlement()
	if s == nil {
		t.Fatal("expected a settlement after history")
	}
	if s.Timeline.ConsumedDays != 5 {
		t.Errorf("expected 5 consumed benefit days with 24 Jan worked, got %d", s.Timeline.ConsumedDays)
	}
}

// TestInvalidSickNoteRejectsPeriod: a fatally invalid opening document is a
// functional rejection, not an error.
func TestInvalidSickNoteRejectsPeriod(t *testing.T) {
	f := newFlow(t)
	note := f.sickNote("acme", span(date(2022, time.January, 3), date(2022, time.January, 26)))
	note.Periods[0].Grade = decimal.NewFromInt(120)

	f.send(note)

	p := f.person.Periods[0]
	f.requireState(p, benefit.StateRejected)
	if len(f.obs.rejections) != 1 {
		t.Errorf("expected one rejection notification, got %d", len(f.obs.rejections))
	}
}

// TestUnexpectedDocumentForcesManualHandling: a document kind with no
// transition for the current state escalates instead of reordering.
func TestUnexpectedDocumentForcesManualHandling(t *testing.T) {
	f := newFlow(t)
	jan := span(date(2022, time.January, 3), date(2022, time.January, 26))
	f.send(f.sickNote("acme", jan))
	p := f.person.Periods[0]

	// WHEN a simulation result arrives during intake
	f.send(&document.SimulationResult{Base: f.base(), PeriodID: p.ID, OK: true})

	f.requireState(p, benefit.StateManualHandling)
}

// TestReminderEnforcesDwellDeadline: a period stuck in one state beyond the
// configured dwell goes to manual handling on the next sweep.
func TestReminderEnforcesDwellDeadline(t *testing.T) {
	f := newFlow(t)
	jan := span(date(2022, time.January, 3), date(2022, time.January, 26))
	f.send(f.sickNote("acme", jan))
	p := f.person.Periods[0]

	// WHEN the sweep fires well past the 30-day dwell
	f.send(&document.Reminder{Base: f.base(), Clock: f.clock.Add(40 * 24 * time.Hour)})

	f.requireState(p, benefit.StateManualHandling)
}

// TestTerminalPeriodSwallowsLateDocument: documents addressed to a settled
// period are recorded as warnings, never processed.
func TestTerminalPeriodSwallowsLateDocument(t *testing.T) {
	f := newFlow(t)
	p := settleJanuary(f)
	logLen := len(p.Log)

	// WHEN a duplicate outcome arrives after closure
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: true})

	f.requireState(p, benefit.StateSettled)
	if len(p.Log) != logLen+1 || p.Log[len(p.Log)-1].Level != benefit.LogWarning {
		t.Error("a swallowed document must leave a warning on the log")
	}
}

// =============================================================================
// 3. EXTENSION OF A FINISHED CLAIM
// =============================================================================

// TestExtensionInheritsClaim: a new absence within the continuation window
// of a settled period continues the claim: same trigger date, inherited
// economics, no fresh employer-period budget.
func TestExtensionInheritsClaim(t *testing.T) {
	f := newFlow(t)
	settleJanuary(f)

	// WHEN a new sick-note opens 1-20 Feb, five days after the old span
	f.send(f.sickNote("acme", span(date(2022, time.February, 1), date(2022, time.February, 20))))

	if len(f.person.Periods) != 2 {
		t.Fatalf("a new absence must open a second period, got %d", len(f.person.Periods))
	}
	ext := f.person.Periods[1]
	f.requireState(ext, benefit.StateExtensionAwaitingApplication)
	if !ext.TriggerDate.Equal(date(2022, time.January, 3)) {
		t.Errorf("an extension keeps the original trigger date, got %s", ext.TriggerDate)
	}
	if !ext.DailyIncome.Equal(decimal.NewFromInt(2400)) {
		t.Errorf("an extension inherits the economics, got %s", ext.DailyIncome)
	}

	// AND the shortened re-intake plus history resolves straight to settlement
	f.send(f.application("acme", span(date(2022, time.February, 1), date(2022, time.February, 20))))
	f.requireState(ext, benefit.StateAwaitingHistory)
	f.send(f.history(0))
	f.requireState(ext, benefit.StateAwaitingSimulation)

	// THEN the employer-period budget carried over is already spent and the
	// claim-wide counter continues from the January settlement
	if !ext.EmployerPeriod.Exhausted() {
		t.Error("the carried-over employer period must be exhausted")
	}
	s := ext.LastSettlement()
	if s.Timeline.ConsumedDays != 20 {
		t.Errorf("expected 6 January days plus 14 February weekdays = 20 consumed, got %d", s.Timeline.ConsumedDays)
	}
}

// TestParkedExtensionWaitsForPredecessor: a follow-up absence arriving while
// the first period is still processing parks until the predecessor closes.
// The continuation window is widened beyond the routing window so the new
// sick-note opens its own period instead of merging into the active one.
func TestParkedExtensionWaitsForPredecessor(t *testing.T) {
	cfg := benefit.DefaultConfig()
	cfg.Settlement.ContinuationWindowDays = 30
	f := newFlowWith(t, cfg)

	f.intake("acme", span(date(2022, time.January, 3), date(2022, time.January, 26)), 52_000)
	first := f.person.Periods[0]

	// WHEN the next absence arrives, 19 days later, before the first period
	// finished
	f.send(f.sickNote("acme", span(date(2022, time.February, 15), date(2022, time.February, 28))))
	if len(f.person.Periods) != 2 {
		t.Fatalf("expected a second period, got %d", len(f.person.Periods))
	}
	ext := f.person.Periods[1]
	f.requireState(ext, benefit.StateAwaitingPriorPeriod)

	// THEN finishing the first period wakes the parked extension
	f.send(f.eligibility())
	f.send(f.history(0))
	f.approveAndPay(first)
	f.requireState(first, benefit.StateSettled)
	f.requireState(ext, benefit.StateExtensionAwaitingApplication)
}

// =============================================================================
// 4. MULTI-EMPLOYER LOCK-STEP
// =============================================================================

// TestMultiEmployerCalculatesInLockStep: overlapping periods of different
// employers wait for each other's history and then calculate in order.
func TestMultiEmployerCalculatesInLockStep(t *testing.T) {
	f := newFlow(t)
	feb := span(date(2022, time.February, 1), date(2022, time.February, 25))

	// GIVEN two overlapping absences for different employers
	f.intake("acme", feb, 52_000)
	f.intake("globex", feb, 26_000)
	if len(f.person.Periods) != 2 {
		t.Fatalf("expected one period per employer, got %d", len(f.person.Periods))
	}
	acme, globex := f.person.Periods[0], f.person.Periods[1]

	// WHEN the shared eligibility basis and history arrive once each;
	// shared documents route to every period that accepts them
	f.send(f.eligibility())
	f.requireState(acme, benefit.StateAwaitingHistory)
	f.requireState(globex, benefit.StateAwaitingHistory)
	f.send(f.history(0))

	// THEN both calculated in lock-step and are flagged multi-employer
	f.requireState(acme, benefit.StateAwaitingSimulation)
	f.requireState(globex, benefit.StateAwaitingSimulation)
	if !acme.MultiEmployer || !globex.MultiEmployer {
		t.Error("overlapping periods must be flagged multi-employer")
	}
	if acme.LastSettlement() == nil || globex.LastSettlement() == nil {
		t.Fatal("both periods must have settled")
	}
	if f.obs.settlements != 2 {
		t.Errorf("expected two settlement notifications, got %d", f.obs.settlements)
	}
}

// =============================================================================
// 5. REVISION
// =============================================================================

// TestRevisionReopensAndRecalculates: a revision reopens the settled period,
// publishes one aggregate summary, and the corrected history produces a
// changed order through the revision approval flow.
func TestRevisionReopensAndRecalculates(t *testing.T) {
	f := newFlow(t)
	p := settleJanuary(f)

	// WHEN a revision for the claim window arrives
	f.send(&document.Revision{
		Base:           f.base(),
		RevisionReason: "corrected benefit history from a parallel case",
		Trigger:        date(2022, time.January, 3),
	})

	f.requireState(p, benefit.StateRevisionAwaitingHistory)
	if len(f.obs.revisions) != 1 {
		t.Fatalf("a revision publishes exactly one summary, got %d", len(f.obs.revisions))
	}
	summary := f.obs.revisions[0]
	if len(summary.PeriodIDs) != 1 || summary.PeriodIDs[0] != p.ID {
		t.Errorf("the summary must list the reopened period, got %v", summary.PeriodIDs)
	}
	if !p.Outstanding(benefit.NeedBenefitHistory) {
		t.Error("reopening must request fresh history")
	}

	// AND the corrected history leaves only three payable days to the ceiling
	f.send(f.history(245))
	f.requireState(p, benefit.StateRevisionAwaitingApproval)

	s := p.LastSettlement()
	if s.Timeline.ConsumedDays != 248 || s.Timeline.RemainingDays != 0 {
		t.Errorf("expected the ceiling to be reached, got %d/%d", s.Timeline.ConsumedDays, s.Timeline.RemainingDays)
	}
	if changes := s.PersonOrder.Changes(); len(changes) == 0 {
		t.Fatal("the truncated run must transmit a change")
	}

	// THEN approval and the two-phase outcome close the revision
	f.send(&document.PaymentApproval{Base: f.base(), PeriodID: p.ID, Approved: true, Automatic: true})
	f.requireState(p, benefit.StateRevisionSendingPayment)
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: true, Detail: "received"})
	f.requireState(p, benefit.StateRevisionAwaitingPaymentOutcome)
	f.send(&document.PaymentOutcome{Base: f.base(), PeriodID: p.ID, Accepted: true})
	f.requireState(p, benefit.StateSettled)
}

// TestRevisionWithoutEffectClosesQuietly: re-reporting the same history
// transmits nothing and settles without a disbursement round.
func TestRevisionWithoutEffectClosesQuietly(t *testing.T) {
	f := newFlow(t)
	p := settleJanuary(f)

	f.send(&document.Revision{Base: f.base(), RevisionReason: "routine control", Trigger: date(2022, time.January, 3)})
	f.send(f.history(0))
	f.requireState(p, benefit.StateRevisionAwaitingApproval)

	f.send(&document.PaymentApproval{Base: f.base(), PeriodID: p.ID, Approved: true, Automatic: true})

	f.requireState(p, benefit.StateSettled)
	if s := p.LastSettlement(); len(s.PersonOrder.Changes()) != 0 {
		t.Errorf("an identical recalculation must transmit nothing, got %d lines", len(s.PersonOrder.Changes()))
	}
}

// =============================================================================
// 6. PERSISTED-STATE TRAVERSAL
// =============================================================================

// TestTraversalRoundTrip: feeding Accept's traversal into a Builder rebuilds
// an equivalent person.
func TestTraversalRoundTrip(t *testing.T) {
	f := newFlow(t)
	p := settleJanuary(f)

	b := benefit.NewBuilder(benefit.DefaultConfig(), benefit.NopObservers{}, benefit.NopRequester{})
	f.person.Accept(b)
	rebuilt := b.Build()

	if rebuilt.ID != f.person.ID || len(rebuilt.Periods) != 1 {
		t.Fatalf("rebuild lost the shape: id=%s periods=%d", rebuilt.ID, len(rebuilt.Periods))
	}
	q := rebuilt.Periods[0]
	if q.ID != p.ID || q.State != p.State || q.Employer != p.Employer {
		t.Errorf("period identity diverged: %+v", q)
	}
	if !q.TriggerDate.Equal(p.TriggerDate) || !q.DailyIncome.Equal(p.DailyIncome) {
		t.Error("claim anchor and economics must survive the round-trip")
	}
	if !q.Timeline.Equal(p.Timeline) {
		t.Error("the merged timeline must survive the round-trip")
	}
	if !q.Timeline.IsLocked(date(2022, time.January, 10)) {
		t.Error("locked spans must survive the round-trip")
	}
	if len(q.Settlements) != len(p.Settlements) || len(q.DocumentIDs) != len(p.DocumentIDs) {
		t.Error("settlements and seen documents must survive the round-trip")
	}
	if len(q.Log) != len(p.Log) {
		t.Errorf("log length diverged: %d vs %d", len(q.Log), len(p.Log))
	}
}
