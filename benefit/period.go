package benefit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// BENEFIT PERIOD - One contiguous candidate span of sick leave
// =============================================================================

// BenefitPeriod is the aggregate a document stream drives through the
// lifecycle machine. A period is owned by exactly one (person, employer)
// relationship; cross-period coordination happens through the Person arena,
// never through direct mutation of a sibling.
type BenefitPeriod struct {
	ID       uuid.UUID
	PersonID string
	Employer string

	// Declared is the span the opening documents claimed; Computed follows
	// the merged timeline and may differ once later documents move bounds.
	Declared timeline.Period
	Computed timeline.Period

	Timeline *timeline.Timeline
	State    State

	// TriggerDate is the skjaeringstidspunkt: the first day of the absence,
	// anchoring eligibility data shared across periods.
	TriggerDate timeline.Date

	MultiEmployer bool

	EnteredStateAt time.Time
	Settlements    []*settlement.Settlement
	DocumentIDs    []string
	Log            []LogEntry

	// Collected inputs for settlement.
	DailyIncome     decimal.Decimal
	RefundEmployer  bool
	FirstAbsenceDay *timeline.Date
	EmployerPeriod  *settlement.EmployerPeriod
	PriorConsumed   int
	PriorUsage      settlement.PriorUsage
	DeathDate       *timeline.Date
	TimeBarCutoff   timeline.Date

	// Revision bookkeeping: reason of the episode that reopened the period.
	RevisionReason string

	outstanding map[NeedKind]bool
}

// NewBenefitPeriod opens a period in the start state.
func NewBenefitPeriod(personID, employer string, now time.Time) *BenefitPeriod {
	return &BenefitPeriod{
		ID:             uuid.New(),
		PersonID:       personID,
		Employer:       employer,
		Timeline:       timeline.New(),
		State:          StateStart,
		EnteredStateAt: now,
		outstanding:    make(map[NeedKind]bool),
	}
}

// LastSettlement returns the most recent settlement, nil when none exists.
func (p *BenefitPeriod) LastSettlement() *settlement.Settlement {
	if len(p.Settlements) == 0 {
		return nil
	}
	return p.Settlements[len(p.Settlements)-1]
}

// recomputeSpan refreshes Computed from the merged timeline.
func (p *BenefitPeriod) recomputeSpan() {
	if span, ok := p.Timeline.Span(); ok {
		p.Computed = span
		if p.Declared.Start.IsZero() {
			p.Declared = span
		}
	}
}

// Outstanding reports whether a data request of the kind is pending.
func (p *BenefitPeriod) Outstanding(kind NeedKind) bool {
	return p.outstanding != nil && p.outstanding[kind]
}

// OutstandingNeeds lists the pending request kinds.
func (p *BenefitPeriod) OutstandingNeeds() []NeedKind {
	var kinds []NeedKind
	for k, v := range p.outstanding {
		if v {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (p *BenefitPeriod) markOutstanding(kind NeedKind) bool {
	if p.outstanding == nil {
		p.outstanding = make(map[NeedKind]bool)
	}
	if p.outstanding[kind] {
		return false
	}
	p.outstanding[kind] = true
	return true
}

func (p *BenefitPeriod) clearOutstanding(kind NeedKind) bool {
	if p.outstanding == nil || !p.outstanding[kind] {
		return false
	}
	delete(p.outstanding, kind)
	return true
}

// RestoreOutstanding reinstates a pending need during reconstruction from
// persisted state.
func (p *BenefitPeriod) RestoreOutstanding(kind NeedKind) {
	p.markOutstanding(kind)
}

func (p *BenefitPeriod) logf(level LogLevel, docID, msg string, at time.Time) {
	p.Log = append(p.Log, LogEntry{Level: level, Message: msg, DocumentID: docID, At: at})
}

// sawDocument records the document id once.
func (p *BenefitPeriod) sawDocument(id string) {
	for _, seen := range p.DocumentIDs {
		if seen == id {
			return
		}
	}
	p.DocumentIDs = append(p.DocumentIDs, id)
}

// extensionOf reports whether the period continues other: same employer and
// a gap no larger than the continuation window.
func (p *BenefitPeriod) extensionOf(other *BenefitPeriod, windowDays int) bool {
	if other == nil || p.Employer != other.Employer {
		return false
	}
	if p.Computed.Start.IsZero() || other.Computed.Start.IsZero() {
		return false
	}
	return p.Computed.GapTo(other.Computed) <= windowDays
}
