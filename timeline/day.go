package timeline

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY CLASSIFICATION - Tagged union over the sickness day kinds
// =============================================================================

// DayKind tags a day classification. Day is a tagged union: the Kind selects
// which payload fields are meaningful. Constructors below are the only
// sanctioned way to build a Day; Validate enforces the payload invariants.
type DayKind string

const (
	DaySick                  DayKind = "sick"
	DaySickWeekend           DayKind = "sick_weekend"
	DayWork                  DayKind = "work"
	DayVacation              DayKind = "vacation"
	DayVacationWithoutNotice DayKind = "vacation_without_notice"
	DayFurlough              DayKind = "furlough"
	DayOtherBenefit          DayKind = "other_benefit"
	DayEmployerPeriod        DayKind = "employer_period"
	DayUnknown               DayKind = "unknown"
	DayTimeBarredSick        DayKind = "time_barred_sick"
	DayProblem               DayKind = "problem"
)

// Day classifies one calendar day of a sickness timeline.
//
// Payload rules:
//   - DaySick / DaySickWeekend always carry Grade, a percentage in (0, 100].
//   - DayOtherBenefit carries Benefit, the kind of the competing benefit.
//   - DayProblem carries Reason and never participates in payment.
type Day struct {
	Kind    DayKind
	Grade   decimal.Decimal
	Benefit string
	Reason  string
}

// Constructors

func SickDay(grade decimal.Decimal) Day        { return Day{Kind: DaySick, Grade: grade} }
func SickWeekendDay(grade decimal.Decimal) Day { return Day{Kind: DaySickWeekend, Grade: grade} }
func WorkDay() Day                             { return Day{Kind: DayWork} }
func VacationDay() Day                         { return Day{Kind: DayVacation} }
func VacationWithoutNoticeDay() Day            { return Day{Kind: DayVacationWithoutNotice} }
func FurloughDay() Day                         { return Day{Kind: DayFurlough} }
func OtherBenefitDay(benefit string) Day       { return Day{Kind: DayOtherBenefit, Benefit: benefit} }
func EmployerPeriodDay() Day                   { return Day{Kind: DayEmployerPeriod} }
func UnknownDay() Day                          { return Day{Kind: DayUnknown} }
func TimeBarredSickDay() Day                   { return Day{Kind: DayTimeBarredSick} }
func ProblemDay(reason string) Day             { return Day{Kind: DayProblem, Reason: reason} }

// SickFor picks the weekday or weekend sick variant for the given day.
func SickFor(d Date, grade decimal.Decimal) Day {
	if d.IsWeekend() {
		return SickWeekendDay(grade)
	}
	return SickDay(grade)
}

// Validate checks the payload invariants for the tagged kind.
func (d Day) Validate() error {
	switch d.Kind {
	case DaySick, DaySickWeekend:
		if !d.Grade.IsPositive() || d.Grade.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: sick day grade %s outside (0,100]", ErrInvalidDay, d.Grade)
		}
	case DayProblem:
		if d.Reason == "" {
			return fmt.Errorf("%w: problem day without reason", ErrInvalidDay)
		}
	case DayOtherBenefit:
		if d.Benefit == "" {
			return fmt.Errorf("%w: other-benefit day without benefit kind", ErrInvalidDay)
		}
	case DayWork, DayVacation, DayVacationWithoutNotice, DayFurlough,
		DayEmployerPeriod, DayUnknown, DayTimeBarredSick:
		// No payload.
	default:
		return fmt.Errorf("%w: unknown day kind %q", ErrInvalidDay, d.Kind)
	}
	return nil
}

// IsSick reports whether the day is a (non-barred) sick day.
func (d Day) IsSick() bool {
	return d.Kind == DaySick || d.Kind == DaySickWeekend
}

// Equal compares kind and payload.
func (d Day) Equal(other Day) bool {
	return d.Kind == other.Kind &&
		d.Grade.Equal(other.Grade) &&
		d.Benefit == other.Benefit &&
		d.Reason == other.Reason
}

func (d Day) String() string {
	switch d.Kind {
	case DaySick, DaySickWeekend:
		return fmt.Sprintf("%s(%s%%)", d.Kind, d.Grade)
	case DayProblem:
		return fmt.Sprintf("%s(%s)", d.Kind, d.Reason)
	case DayOtherBenefit:
		return fmt.Sprintf("%s(%s)", d.Kind, d.Benefit)
	default:
		return string(d.Kind)
	}
}
