package benefit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// INBOUND DOCUMENT CONTRACT
// =============================================================================
// The engine consumes documents through this interface and the optional
// carrier interfaces below. Parsing and deserialization happen outside;
// concrete document types live in the document package and implement these.

// Document is the minimal contract every inbound document exposes.
type Document interface {
	Kind() timeline.SourceKind
	DocumentID() string
	ReceivedAt() time.Time

	// RelevantTo decides whether the document concerns the given period.
	// Routing-only; it must not mutate the period.
	RelevantTo(p *BenefitPeriod) bool

	// Validate checks the document against the period it was routed to.
	Validate(p *BenefitPeriod) ValidationResult
}

// ValidationResult carries non-fatal warnings and an optional fatal error.
// A fatal Err wrapping ErrFunctionalRejection rejects the period.
type ValidationResult struct {
	Warnings []string
	Err      error
}

func (v ValidationResult) OK() bool { return v.Err == nil }

// =============================================================================
// CARRIER INTERFACES - Typed access to document payloads
// =============================================================================
// The machine never type-asserts on concrete document structs; it asks for
// the payload facet it needs. A document implements only the facets its
// kind carries.

// TimelineCarrier is implemented by documents that classify days
// (sick-note, application, other-benefit history, manual override).
type TimelineCarrier interface {
	TimelineFragment() *timeline.Timeline
}

// EconomicCarrier is implemented by the income report.
type EconomicCarrier interface {
	FirstAbsenceDay() timeline.Date
	DailyIncome() decimal.Decimal
	RefundToEmployer() bool
	EmployerPeriodClaim() *timeline.Period
}

// EligibilityCarrier is implemented by the eligibility basis document.
type EligibilityCarrier interface {
	Eligible() (bool, string)
	RequiresAssessment() bool
	DeathDate() *timeline.Date
}

// HistoryCarrier is implemented by the other-benefit history document.
type HistoryCarrier interface {
	PriorConsumedDays() int
	PriorEmployerUsage() settlement.PriorUsage
}

// VerdictCarrier is implemented by simulation results, payment approvals
// and payment outcomes: a boolean verdict plus free-text detail.
type VerdictCarrier interface {
	Verdict() (ok bool, detail string)
}

// ApprovalCarrier extends the verdict with the approving actor.
type ApprovalCarrier interface {
	VerdictCarrier
	ApprovedBy() (actor string, automatic bool)
}

// RevisionCarrier is implemented by revision documents.
type RevisionCarrier interface {
	Reason() string
	TriggerDate() timeline.Date
	AffectedWindow() *timeline.Period
}

// ReminderCarrier is implemented by the periodic reminder event that
// enforces state dwell deadlines.
type ReminderCarrier interface {
	Now() time.Time
}
