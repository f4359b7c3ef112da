package document

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// SICK NOTE
// =============================================================================

// GradedPeriod is one span of a sick-note with its sickness grade.
type GradedPeriod struct {
	Span  timeline.Period `json:"span"`
	Grade decimal.Decimal `json:"grade"`
}

type SickNote struct {
	Base
	Employer string         `json:"employer"`
	Periods  []GradedPeriod `json:"periods"`
}

var _ benefit.Document = (*SickNote)(nil)
var _ benefit.TimelineCarrier = (*SickNote)(nil)

func (d *SickNote) Kind() timeline.SourceKind { return timeline.KindSickNote }
func (d *SickNote) EmployerID() string        { return d.Employer }

func (d *SickNote) span() timeline.Period {
	out := d.Periods[0].Span
	for _, gp := range d.Periods[1:] {
		out = out.Extend(gp.Span)
	}
	return out
}

func (d *SickNote) RelevantTo(p *benefit.BenefitPeriod) bool {
	if len(d.Periods) == 0 || !employerMatches(p, d.Employer) {
		return false
	}
	return nearPeriod(p, d.span())
}

func (d *SickNote) Validate(p *benefit.BenefitPeriod) benefit.ValidationResult {
	if len(d.Periods) == 0 {
		return fatal("sick-note without periods")
	}
	hundred := decimal.NewFromInt(100)
	for _, gp := range d.Periods {
		if !gp.Grade.IsPositive() || gp.Grade.GreaterThan(hundred) {
			return fatal("sick-note grade outside (0,100]")
		}
	}
	return ok()
}

func (d *SickNote) TimelineFragment() *timeline.Timeline {
	t := timeline.New()
	src := timeline.Source{Kind: d.Kind(), DocumentID: d.ID, ReceivedAt: d.Received}
	for _, gp := range d.Periods {
		t.SetPeriod(gp.Span, timeline.SickDay(gp.Grade), src)
	}
	return t
}

// =============================================================================
// APPLICATION - The person's own report
// =============================================================================

type Application struct {
	Base
	Employer string            `json:"employer"`
	Span     timeline.Period   `json:"span"`
	WorkDays []timeline.Date   `json:"work_days,omitempty"`
	Vacation []timeline.Period `json:"vacation,omitempty"`
	Furlough []timeline.Period `json:"furlough,omitempty"`
}

var _ benefit.Document = (*Application)(nil)
var _ benefit.TimelineCarrier = (*Application)(nil)

func (d *Application) Kind() timeline.SourceKind { return timeline.KindApplication }
func (d *Application) EmployerID() string        { return d.Employer }

func (d *Application) RelevantTo(p *benefit.BenefitPeriod) bool {
	return employerMatches(p, d.Employer) && nearPeriod(p, d.Span)
}

func (d *Application) Validate(p *benefit.BenefitPeriod) benefit.ValidationResult {
	var warnings []string
	if !p.Computed.Start.IsZero() && !p.Computed.ContainsPeriod(d.Span) && !d.Span.ContainsPeriod(p.Computed) {
		warnings = append(warnings, "application span differs from the sick-note span")
	}
	for _, wd := range d.WorkDays {
		if !d.Span.Contains(wd) {
			return fatal("reported work day outside application span")
		}
	}
	return ok(warnings...)
}

// TimelineFragment carries only the self-reported overrides: days worked,
// vacation and furlough. Confirmed sick days stay with the sick-note's
// classification; the tournament gives the overrides the higher rank.
func (d *Application) TimelineFragment() *timeline.Timeline {
	t := timeline.New()
	src := timeline.Source{Kind: d.Kind(), DocumentID: d.ID, ReceivedAt: d.Received}
	for _, wd := range d.WorkDays {
		t.Set(wd, timeline.WorkDay(), src)
	}
	for _, v := range d.Vacation {
		t.SetPeriod(v, timeline.VacationDay(), src)
	}
	for _, f := range d.Furlough {
		t.SetPeriod(f, timeline.FurloughDay(), src)
	}
	return t
}

// =============================================================================
// INCOME REPORT - The employer's economic statement
// =============================================================================

type IncomeReport struct {
	Base
	Employer        string           `json:"employer"`
	FirstAbsence    timeline.Date    `json:"first_absence_day"`
	MonthlyIncome   decimal.Decimal  `json:"monthly_income"`
	Refund          bool             `json:"refund_to_employer"`
	EmployerPeriods []timeline.Period `json:"employer_periods,omitempty"`
}

var _ benefit.Document = (*IncomeReport)(nil)
var _ benefit.EconomicCarrier = (*IncomeReport)(nil)

func (d *IncomeReport) Kind() timeline.SourceKind { return timeline.KindIncomeReport }
func (d *IncomeReport) EmployerID() string        { return d.Employer }

func (d *IncomeReport) RelevantTo(p *benefit.BenefitPeriod) bool {
	if !employerMatches(p, d.Employer) {
		return false
	}
	return nearPeriod(p, timeline.Period{Start: d.FirstAbsence, End: d.FirstAbsence})
}

func (d *IncomeReport) Validate(p *benefit.BenefitPeriod) benefit.ValidationResult {
	if d.MonthlyIncome.IsNegative() {
		return fatal("negative monthly income")
	}
	var warnings []string
	if !p.TriggerDate.IsZero() && !d.FirstAbsence.Equal(p.TriggerDate) {
		warnings = append(warnings, "employer reports a different first absence day")
	}
	return ok(warnings...)
}

func (d *IncomeReport) FirstAbsenceDay() timeline.Date { return d.FirstAbsence }

// DailyIncome converts the reported monthly income to the grade-100 daily
// rate over the standard 260 working days per year.
func (d *IncomeReport) DailyIncome() decimal.Decimal {
	if d.MonthlyIncome.IsZero() {
		return decimal.Zero
	}
	return d.MonthlyIncome.Mul(decimal.NewFromInt(12)).Div(decimal.NewFromInt(260)).Round(0)
}

func (d *IncomeReport) RefundToEmployer() bool { return d.Refund }

func (d *IncomeReport) EmployerPeriodClaim() *timeline.Period {
	if len(d.EmployerPeriods) == 0 {
		return nil
	}
	claim := d.EmployerPeriods[0]
	for _, p := range d.EmployerPeriods[1:] {
		claim = claim.Extend(p)
	}
	return &claim
}

// =============================================================================
// ELIGIBILITY BASIS
// =============================================================================

type EligibilityBasis struct {
	Base
	Trigger            timeline.Date  `json:"trigger_date"`
	IsEligible         bool           `json:"eligible"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	NeedsAssessment    bool           `json:"needs_assessment,omitempty"`
	ReportedDeathDate  *timeline.Date `json:"death_date,omitempty"`
}

var _ benefit.Document = (*EligibilityBasis)(nil)
var _ benefit.EligibilityCarrier = (*EligibilityBasis)(nil)

func (d *EligibilityBasis) Kind() timeline.SourceKind { return timeline.KindEligibilityBasis }

func (d *EligibilityBasis) RelevantTo(p *benefit.BenefitPeriod) bool {
	if p.State.Phase() != benefit.PhaseEligibility {
		return false
	}
	return d.Trigger.IsZero() || d.Trigger.Equal(p.TriggerDate)
}

func (d *EligibilityBasis) Validate(p *benefit.BenefitPeriod) benefit.ValidationResult {
	if !d.IsEligible && d.RejectionReason == "" {
		return fatal("ineligible without a reason")
	}
	return ok()
}

func (d *EligibilityBasis) Eligible() (bool, string)   { return d.IsEligible, d.RejectionReason }
func (d *EligibilityBasis) RequiresAssessment() bool   { return d.NeedsAssessment }
func (d *EligibilityBasis) DeathDate() *timeline.Date  { return d.ReportedDeathDate }

// =============================================================================
// OTHER-BENEFIT HISTORY
// =============================================================================

// BenefitSpan is a span during which another benefit was paid.
type BenefitSpan struct {
	Benefit string          `json:"benefit"`
	Span    timeline.Period `json:"span"`
}

type OtherBenefitHistory struct {
	Base
	Spans         []BenefitSpan  `json:"spans,omitempty"`
	ConsumedDays  int            `json:"consumed_days"`
	EmployerDays  int            `json:"employer_period_days_consumed"`
	LastCounted   *timeline.Date `json:"employer_period_last_counted,omitempty"`
}

var _ benefit.Document = (*OtherBenefitHistory)(nil)
var _ benefit.HistoryCarrier = (*OtherBenefitHistory)(nil)
var _ benefit.TimelineCarrier = (*OtherBenefitHistory)(nil)

func (d *OtherBenefitHistory) Kind() timeline.SourceKind { return timeline.KindOtherBenefitHistory }

func (d *OtherBenefitHistory) RelevantTo(p *benefit.BenefitPeriod) bool {
	return p.State == benefit.StateAwaitingHistory || p.State == benefit.StateRevisionAwaitingHistory
}

func (d *OtherBenefitHistory) Validate(p *benefit.BenefitPeriod) benefit.ValidationResult {
	if d.ConsumedDays < 0 || d.EmployerDays < 0 {
		return fatal("negative consumed counter in history")
	}
	return ok()
}

func (d *OtherBenefitHistory) PriorConsumedDays() int { return d.ConsumedDays }

func (d *OtherBenefitHistory) PriorEmployerUsage() settlement.PriorUsage {
	return settlement.PriorUsage{DaysConsumed: d.EmployerDays, LastCountedDay: d.LastCounted}
}

// TimelineFragment marks days covered by another benefit so settlement
// rejects them instead of double-paying.
func (d *OtherBenefitHistory) TimelineFragment() *timeline.Timeline {
	t := timeline.New()
	src := timeline.Source{Kind: d.Kind(), DocumentID: d.ID, ReceivedAt: d.Received}
	for _, bs := range d.Spans {
		t.SetPeriod(bs.Span, timeline.OtherBenefitDay(bs.Benefit), src)
	}
	return t
}

// =============================================================================
// SIMULATION RESULT, PAYMENT APPROVAL, PAYMENT OUTCOME
// =============================================================================

type SimulationResult struct {
	Base
	PeriodID uuid.UUID `json:"period_id"`
	OK       bool      `json:"ok"`
	Detail   string    `json:"detail,omitempty"`
}

var _ benefit.Document = (*SimulationResult)(nil)
var _ benefit.VerdictCarrier = (*SimulationResult)(nil)

func (d *SimulationResult) Kind() timeline.SourceKind { return timeline.KindSimulationResult }
func (d *SimulationResult) RelevantTo(p *benefit.BenefitPeriod) bool {
	return p.ID == d.PeriodID
}
func (d *SimulationResult) Validate(*benefit.BenefitPeriod) benefit.ValidationResult { return ok() }
func (d *SimulationResult) Verdict() (bool, string)                                  { return d.OK, d.Detail }

type PaymentApproval struct {
	Base
	PeriodID  uuid.UUID `json:"period_id"`
	Approved  bool      `json:"approved"`
	Detail    string    `json:"detail,omitempty"`
	Approver  string    `json:"approver,omitempty"`
	Automatic bool      `json:"automatic,omitempty"`
}

var _ benefit.Document = (*PaymentApproval)(nil)
var _ benefit.ApprovalCarrier = (*PaymentApproval)(nil)

func (d *PaymentApproval) Kind() timeline.SourceKind { return timeline.KindPaymentApproval }
func (d *PaymentApproval) RelevantTo(p *benefit.BenefitPeriod) bool {
	return p.ID == d.PeriodID
}
func (d *PaymentApproval) Validate(*benefit.BenefitPeriod) benefit.ValidationResult {
	if !d.Automatic && d.Approver == "" {
		return fatal("manual approval without approver")
	}
	return ok()
}
func (d *PaymentApproval) Verdict() (bool, string)     { return d.Approved, d.Detail }
func (d *PaymentApproval) ApprovedBy() (string, bool)  { return d.Approver, d.Automatic }

type PaymentOutcome struct {
	Base
	PeriodID uuid.UUID `json:"period_id"`
	Accepted bool      `json:"accepted"`
	Detail   string    `json:"detail,omitempty"`
}

var _ benefit.Document = (*PaymentOutcome)(nil)
var _ benefit.VerdictCarrier = (*PaymentOutcome)(nil)

func (d *PaymentOutcome) Kind() timeline.SourceKind { return timeline.KindPaymentOutcome }
func (d *PaymentOutcome) RelevantTo(p *benefit.BenefitPeriod) bool {
	return p.ID == d.PeriodID
}
func (d *PaymentOutcome) Validate(*benefit.BenefitPeriod) benefit.ValidationResult { return ok() }
func (d *PaymentOutcome) Verdict() (bool, string)                                  { return d.Accepted, d.Detail }

// =============================================================================
// MANUAL OVERRIDE
// =============================================================================

// OverrideDay reclassifies one day by hand.
type OverrideDay struct {
	Date timeline.Date    `json:"date"`
	Kind timeline.DayKind `json:"kind"`
	Grade decimal.Decimal `json:"grade,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

type ManualOverride struct {
	Base
	PeriodID uuid.UUID     `json:"period_id"`
	Days     []OverrideDay `json:"days,omitempty"`
	Actor    string        `json:"actor"`
}

var _ benefit.Document = (*ManualOverride)(nil)
var _ benefit.TimelineCarrier = (*ManualOverride)(nil)

func (d *ManualOverride) Kind() timeline.SourceKind { return timeline.KindManualOverride }
func (d *ManualOverride) RelevantTo(p *benefit.BenefitPeriod) bool {
	return p.ID == d.PeriodID
}
func (d *ManualOverride) Validate(*benefit.BenefitPeriod) benefit.ValidationResult {
	if d.Actor == "" {
		return fatal("manual override without actor")
	}
	for _, od := range d.Days {
		day := timeline.Day{Kind: od.Kind, Grade: od.Grade, Reason: od.Reason}
		if err := day.Validate(); err != nil {
			return fatal(err.Error())
		}
	}
	return ok()
}

func (d *ManualOverride) TimelineFragment() *timeline.Timeline {
	t := timeline.New()
	src := timeline.Source{Kind: d.Kind(), DocumentID: d.ID, ReceivedAt: d.Received}
	for _, od := range d.Days {
		t.Set(od.Date, timeline.Day{Kind: od.Kind, Grade: od.Grade, Reason: od.Reason}, src)
	}
	return t
}

// =============================================================================
// REVISION AND REMINDER
// =============================================================================

type Revision struct {
	Base
	RevisionReason string           `json:"reason"`
	Trigger        timeline.Date    `json:"trigger_date"`
	Window         *timeline.Period `json:"window,omitempty"`
}

var _ benefit.Document = (*Revision)(nil)
var _ benefit.RevisionCarrier = (*Revision)(nil)

func (d *Revision) Kind() timeline.SourceKind                     { return timeline.KindRevision }
func (d *Revision) RelevantTo(p *benefit.BenefitPeriod) bool      { return !p.State.Terminal() }
func (d *Revision) Validate(*benefit.BenefitPeriod) benefit.ValidationResult {
	if d.RevisionReason == "" {
		return fatal("revision without reason")
	}
	return ok()
}
func (d *Revision) Reason() string                  { return d.RevisionReason }
func (d *Revision) TriggerDate() timeline.Date      { return d.Trigger }
func (d *Revision) AffectedWindow() *timeline.Period { return d.Window }

// Reminder is the periodic timeout sweep event.
type Reminder struct {
	Base
	Clock time.Time `json:"clock"`
}

var _ benefit.Document = (*Reminder)(nil)
var _ benefit.ReminderCarrier = (*Reminder)(nil)

func (d *Reminder) Kind() timeline.SourceKind                     { return timeline.KindReminder }
func (d *Reminder) RelevantTo(p *benefit.BenefitPeriod) bool      { return !p.State.Terminal() }
func (d *Reminder) Validate(*benefit.BenefitPeriod) benefit.ValidationResult { return ok() }
func (d *Reminder) Now() time.Time                                { return d.Clock }
