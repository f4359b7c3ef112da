/*
Package settlement turns a sickness timeline into disbursement orders.

PURPOSE:
  Given a merged sickness timeline plus economic parameters, this package
  classifies every calendar day for payment, tracks the statutory
  benefit-day ceiling and the maximum date, and produces two parallel
  payment orders (employer-directed and person-directed) as diffs against
  the previous settlement for the same benefit period.

KEY CONCEPTS:
  - EmployerPeriod: statutory initial span paid by the employer (employer.go)
  - PaymentDay:     tagged payment classification of one day
  - PaymentTimeline: date-indexed payment days plus consumed-day counters
  - Line/Order:     grouped disbursement lines with change codes (diff.go)
  - Settlement:     one computed result; successive settlements diff cleanly

MONEY:
  All rates and amounts use decimal.Decimal. Rates are grade-weighted:
  rate = dailyIncome * grade / 100.

SEE ALSO:
  - employer.go: employer-responsibility window derivation
  - settle.go:   the day classification and counting algorithm
  - diff.go:     structural diffing into NEW/UNCHANGED/CHANGED lines
*/
package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// RULES - Statutory constants, injected as configuration
// =============================================================================

// Rules carries the statutory counting constants. Values are configuration;
// the defaults follow current practice but are never hardcoded in the
// algorithms.
type Rules struct {
	// EmployerPeriodDays is the calendar-day budget the employer covers
	// before public payment starts.
	EmployerPeriodDays int

	// ContinuationWindowDays is the look-back window: a new absence starting
	// within this many days of the last counted employer-period day keeps
	// consuming the same budget instead of resetting it.
	ContinuationWindowDays int

	// CeilingDays is the statutory maximum of paid weekday benefit days for
	// one claim.
	CeilingDays int

	// TimeBarYears: sick days older than this many years before the
	// triggering document never count or pay.
	TimeBarYears int

	// WaitingDays: number of waiting-period days after the employer period
	// before public payment starts. Zero for employees.
	WaitingDays int
}

func DefaultRules() Rules {
	return Rules{
		EmployerPeriodDays:     16,
		ContinuationWindowDays: 16,
		CeilingDays:            248,
		TimeBarYears:           3,
		WaitingDays:            0,
	}
}

// =============================================================================
// PAYMENT DAY CLASSIFICATION
// =============================================================================

type PayKind string

const (
	PayEmployerResponsibility PayKind = "employer_responsibility"
	PayNav                    PayKind = "nav"
	PayNavWeekend             PayKind = "nav_weekend"
	PayWaiting                PayKind = "waiting"
	PayTimeBarred             PayKind = "time_barred"
	PayRejected               PayKind = "rejected"
	PayFree                   PayKind = "free"
	PayWork                   PayKind = "work"
	PayUnknown                PayKind = "unknown"
)

// PaymentDay classifies one day for payment. Rate and Grade are meaningful
// for PayNav; Reason is meaningful for PayRejected.
type PaymentDay struct {
	Kind   PayKind         `json:"kind"`
	Rate   decimal.Decimal `json:"rate"`
	Grade  decimal.Decimal `json:"grade"`
	Reason string          `json:"reason,omitempty"`
}

func (p PaymentDay) Equal(other PaymentDay) bool {
	return p.Kind == other.Kind &&
		p.Rate.Equal(other.Rate) &&
		p.Grade.Equal(other.Grade) &&
		p.Reason == other.Reason
}

// PaymentTimeline is the day-level payment classification plus the running
// counters the claim tracks across settlements.
type PaymentTimeline struct {
	Days map[timeline.Date]PaymentDay `json:"days"`

	ConsumedDays  int `json:"consumed_days"`
	RemainingDays int `json:"remaining_days"`

	// MaximumDate is set once the ceiling is reached and never moves
	// backward across successive settlements of the same claim.
	MaximumDate *timeline.Date `json:"maximum_date,omitempty"`
}

// At returns the payment classification for a day.
func (pt *PaymentTimeline) At(d timeline.Date) (PaymentDay, bool) {
	day, ok := pt.Days[d]
	return day, ok
}

// =============================================================================
// LINES AND ORDERS
// =============================================================================

type Payer string

const (
	PayerEmployer Payer = "employer"
	PayerPerson   Payer = "person"
)

type ChangeCode string

const (
	ChangeNew       ChangeCode = "NEW"
	ChangeUnchanged ChangeCode = "UNCHANGED"
	ChangeChanged   ChangeCode = "CHANGED"
)

// Line is one disbursement run: contiguous days with identical rate and
// grade. A non-nil StatusFromDate marks a cancellation (opphoer) line: the
// run stops paying from that date.
type Line struct {
	From           timeline.Date   `json:"from"`
	To             timeline.Date   `json:"to"`
	RateType       string          `json:"rate_type"`
	Amount         decimal.Decimal `json:"amount"`
	DailyIncome    decimal.Decimal `json:"daily_income"`
	Grade          decimal.Decimal `json:"grade"`
	CorrelationID  string          `json:"correlation_id"`
	Seq            int             `json:"seq"`
	PredecessorSeq int             `json:"predecessor_seq,omitempty"` // zero when no predecessor
	Change         ChangeCode      `json:"change"`
	StatusFromDate *timeline.Date  `json:"status_from_date,omitempty"`
}

// RateTypeDaily is the only rate type this engine emits today.
const RateTypeDaily = "daily"

// IsCancellation reports whether the line stops a previously transmitted run.
func (l Line) IsCancellation() bool { return l.StatusFromDate != nil }

// sameRun reports whether two lines describe the identical run of days.
func (l Line) sameRun(other Line) bool {
	return l.From.Equal(other.From) && l.To.Equal(other.To) &&
		l.RateType == other.RateType &&
		l.Amount.Equal(other.Amount) &&
		l.DailyIncome.Equal(other.DailyIncome) &&
		l.Grade.Equal(other.Grade)
}

// Order is one payer's ordered, non-overlapping list of lines.
type Order struct {
	Payer         Payer  `json:"payer"`
	CorrelationID string `json:"correlation_id"`
	Lines         []Line `json:"lines,omitempty"`
}

// Changes returns the lines worth transmitting: everything except UNCHANGED.
func (o Order) Changes() []Line {
	var out []Line
	for _, l := range o.Lines {
		if l.Change != ChangeUnchanged {
			out = append(out, l)
		}
	}
	return out
}

// Active returns the non-cancelled lines, the runs that actually pay.
func (o Order) Active() []Line {
	var out []Line
	for _, l := range o.Lines {
		if !l.IsCancellation() {
			out = append(out, l)
		}
	}
	return out
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// Settlement is one computed disbursement result for a benefit period.
type Settlement struct {
	ID            string
	CorrelationID string
	EmployerOrder Order
	PersonOrder   Order
	Timeline      PaymentTimeline
	CreatedAt     time.Time

	// Incomplete marks a settlement whose classification could not finish
	// (typically a missing economic input). The state machine treats an
	// incomplete settlement as "needs more data", not as a failure.
	Incomplete        bool
	IncompleteReasons []string
}

// HasPayableLines reports whether any active line pays a positive amount.
func (s *Settlement) HasPayableLines() bool {
	for _, o := range []Order{s.EmployerOrder, s.PersonOrder} {
		for _, l := range o.Active() {
			if l.Amount.IsPositive() {
				return true
			}
		}
	}
	return false
}
