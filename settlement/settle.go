package settlement

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// SETTLE - Classify days, count consumed benefit days, build orders
// =============================================================================

// Input collects everything one settlement computation needs. The prior
// settlement (if any) drives the structural diff; prior consumed days and
// maximum date keep the claim-wide counters monotone.
type Input struct {
	Timeline       *timeline.Timeline
	EmployerPeriod *EmployerPeriod
	Rules          Rules

	// DailyIncome is the grade-100 daily rate basis. Zero means the economic
	// input is missing; affected days become rejected and the settlement is
	// flagged incomplete.
	DailyIncome decimal.Decimal

	// RefundToEmployer routes public payment lines to the employer order
	// (wage refund) instead of the person order.
	RefundToEmployer bool

	// PriorConsumedDays is the claim-wide consumed counter before this
	// period's days.
	PriorConsumedDays int

	// PriorMaximumDate, once fixed, is never recomputed backward.
	PriorMaximumDate *timeline.Date

	// DeathDate forces every day on or after it to rejected.
	DeathDate *timeline.Date

	// TimeBarCutoff: sick days before this date are time-barred.
	TimeBarCutoff timeline.Date

	// Prior is the immediately preceding settlement for the same benefit
	// period, nil for the first one.
	Prior *Settlement

	CorrelationID string
	Now           time.Time
}

const (
	reasonCeilingReached = "benefit day ceiling reached"
	reasonDeath          = "date on or after reported death date"
	reasonMissingIncome  = "missing economic basis"
	reasonOtherBenefit   = "overlapping other benefit"
)

// Settle runs the payment classification and produces a Settlement whose
// orders are structural diffs against in.Prior.
func Settle(in Input) *Settlement {
	s := &Settlement{
		ID:            uuid.NewString(),
		CorrelationID: in.CorrelationID,
		CreatedAt:     in.Now,
		Timeline: PaymentTimeline{
			Days: make(map[timeline.Date]PaymentDay),
		},
	}
	if s.CorrelationID == "" {
		s.CorrelationID = uuid.NewString()
	}
	if in.Prior != nil {
		// The correlation id identifies the period's order chain and stays
		// stable across successive settlements.
		s.CorrelationID = in.Prior.CorrelationID
	}

	consumed := in.PriorConsumedDays
	waitingLeft := in.Rules.WaitingDays
	var lastPaid *timeline.Date

	for _, d := range in.Timeline.Days() {
		e, _ := in.Timeline.At(d)
		s.Timeline.Days[d] = classifyDay(in, e, d, &consumed, &waitingLeft, &lastPaid)
	}
	if in.Rules.CeilingDays > 0 && consumed > in.Rules.CeilingDays {
		consumed = in.Rules.CeilingDays
	}

	s.Timeline.ConsumedDays = consumed
	s.Timeline.RemainingDays = in.Rules.CeilingDays - consumed
	if s.Timeline.RemainingDays < 0 {
		s.Timeline.RemainingDays = 0
	}
	s.Timeline.MaximumDate = maximumDate(in, consumed, lastPaid)

	s.Incomplete, s.IncompleteReasons = incompleteness(s.Timeline)

	navPayer := PayerPerson
	if in.RefundToEmployer {
		navPayer = PayerEmployer
	}
	lines := buildLines(s.Timeline, s.CorrelationID, in.DailyIncome)

	var priorEmployer, priorPerson *Order
	if in.Prior != nil {
		priorEmployer = &in.Prior.EmployerOrder
		priorPerson = &in.Prior.PersonOrder
	}

	var employerLines, personLines []Line
	if navPayer == PayerEmployer {
		employerLines = lines
	} else {
		personLines = lines
	}
	s.EmployerOrder = diffOrder(PayerEmployer, s.CorrelationID, priorEmployer, employerLines)
	s.PersonOrder = diffOrder(PayerPerson, s.CorrelationID, priorPerson, personLines)

	return s
}

// classifyDay maps one sickness day to its payment classification and
// advances the consumed counter.
func classifyDay(in Input, e timeline.Entry, d timeline.Date, consumed, waitingLeft *int, lastPaid **timeline.Date) PaymentDay {
	if in.DeathDate != nil && d.AfterOrEqual(*in.DeathDate) {
		return PaymentDay{Kind: PayRejected, Reason: reasonDeath}
	}

	switch e.Day.Kind {
	case timeline.DayWork:
		return PaymentDay{Kind: PayWork}
	case timeline.DayVacation, timeline.DayVacationWithoutNotice, timeline.DayFurlough:
		return PaymentDay{Kind: PayFree}
	case timeline.DayOtherBenefit:
		return PaymentDay{Kind: PayRejected, Reason: reasonOtherBenefit}
	case timeline.DayUnknown:
		return PaymentDay{Kind: PayUnknown}
	case timeline.DayTimeBarredSick:
		return PaymentDay{Kind: PayTimeBarred}
	case timeline.DayProblem:
		return PaymentDay{Kind: PayRejected, Reason: e.Day.Reason}
	case timeline.DayEmployerPeriod:
		return PaymentDay{Kind: PayEmployerResponsibility}
	case timeline.DaySick, timeline.DaySickWeekend:
		// Falls through to the sick-day logic below.
	default:
		return PaymentDay{Kind: PayUnknown}
	}

	if d.Before(in.TimeBarCutoff) {
		return PaymentDay{Kind: PayTimeBarred}
	}
	if in.EmployerPeriod.Covers(d) {
		return PaymentDay{Kind: PayEmployerResponsibility}
	}
	if d.IsWeekend() {
		return PaymentDay{Kind: PayNavWeekend, Grade: e.Day.Grade}
	}
	if *waitingLeft > 0 {
		*waitingLeft--
		return PaymentDay{Kind: PayWaiting, Grade: e.Day.Grade}
	}
	if in.DailyIncome.IsZero() {
		return PaymentDay{Kind: PayRejected, Reason: reasonMissingIncome}
	}
	if in.Rules.CeilingDays > 0 && *consumed >= in.Rules.CeilingDays {
		return PaymentDay{Kind: PayRejected, Reason: reasonCeilingReached}
	}

	*consumed++
	day := d
	*lastPaid = &day
	rate := in.DailyIncome.Mul(e.Day.Grade).Div(decimal.NewFromInt(100)).Round(0)
	return PaymentDay{Kind: PayNav, Rate: rate, Grade: e.Day.Grade}
}

// maximumDate fixes the exhaustion date once the ceiling is reached and
// keeps it monotone across settlements.
func maximumDate(in Input, consumed int, lastPaid *timeline.Date) *timeline.Date {
	var computed *timeline.Date
	if in.Rules.CeilingDays > 0 && consumed >= in.Rules.CeilingDays && lastPaid != nil {
		computed = lastPaid
	}
	switch {
	case in.PriorMaximumDate == nil:
		return computed
	case computed == nil:
		return in.PriorMaximumDate
	case computed.Before(*in.PriorMaximumDate):
		return in.PriorMaximumDate
	default:
		return computed
	}
}

func incompleteness(pt PaymentTimeline) (bool, []string) {
	seen := map[string]bool{}
	var reasons []string
	for _, pd := range pt.Days {
		if pd.Kind == PayRejected && pd.Reason == reasonMissingIncome && !seen[pd.Reason] {
			seen[pd.Reason] = true
			reasons = append(reasons, pd.Reason)
		}
	}
	return len(reasons) > 0, reasons
}

// buildLines groups contiguous weekday NAV days with identical rate and
// grade into payment lines. A weekend between two identical weekday runs
// bridges the line rather than splitting it; any other day kind ends the run.
func buildLines(pt PaymentTimeline, correlationID string, income decimal.Decimal) []Line {
	days := make([]timeline.Date, 0, len(pt.Days))
	for d := range pt.Days {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var lines []Line
	var open *Line

	flush := func() {
		if open != nil {
			lines = append(lines, *open)
			open = nil
		}
	}

	for _, d := range days {
		pd := pt.Days[d]
		switch pd.Kind {
		case PayNav:
			if open != nil && open.Amount.Equal(pd.Rate) && open.Grade.Equal(pd.Grade) {
				open.To = d
				continue
			}
			flush()
			open = &Line{
				From:          d,
				To:            d,
				RateType:      RateTypeDaily,
				Amount:        pd.Rate,
				DailyIncome:   income,
				Grade:         pd.Grade,
				CorrelationID: correlationID,
				Change:        ChangeNew,
			}
		case PayNavWeekend:
			// Weekends inside a paid run neither pay nor split the line.
		default:
			flush()
		}
	}
	flush()
	return lines
}
