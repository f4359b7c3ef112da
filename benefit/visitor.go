package benefit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// PERSISTED-STATE TRAVERSAL
// =============================================================================
// The engine does not own a persistence format. Stores consume the model
// through this visitor and rebuild it through the Builder; any format that
// round-trips the traversal reproduces an identical in-memory model.

// PeriodMeta is the flattened scalar state of one benefit period.
type PeriodMeta struct {
	ID              uuid.UUID
	PersonID        string
	Employer        string
	Declared        timeline.Period
	Computed        timeline.Period
	State           State
	TriggerDate     timeline.Date
	MultiEmployer   bool
	EnteredStateAt  time.Time
	DailyIncome     decimal.Decimal
	RefundEmployer  bool
	FirstAbsenceDay *timeline.Date
	PriorConsumed   int
	PriorUsage      settlement.PriorUsage
	DeathDate       *timeline.Date
	TimeBarCutoff   timeline.Date
	RevisionReason  string
	EmployerPeriod  *settlement.EmployerPeriod
	DocumentIDs     []string
}

// Visitor walks one person's full model in a deterministic order: the
// person, then each period's metadata followed by its timeline days, locked
// periods, settlements, outstanding needs and log entries.
type Visitor interface {
	VisitPerson(personID string)
	VisitPeriod(meta PeriodMeta)
	VisitTimelineDay(periodID uuid.UUID, date timeline.Date, entry timeline.Entry)
	VisitLockedPeriod(periodID uuid.UUID, locked timeline.Period)
	VisitSettlement(periodID uuid.UUID, s *settlement.Settlement)
	VisitNeed(periodID uuid.UUID, kind NeedKind)
	VisitLogEntry(periodID uuid.UUID, entry LogEntry)
}

// Accept traverses the person.
func (ps *Person) Accept(v Visitor) {
	v.VisitPerson(ps.ID)
	for _, p := range ps.Periods {
		v.VisitPeriod(PeriodMeta{
			ID:              p.ID,
			PersonID:        p.PersonID,
			Employer:        p.Employer,
			Declared:        p.Declared,
			Computed:        p.Computed,
			State:           p.State,
			TriggerDate:     p.TriggerDate,
			MultiEmployer:   p.MultiEmployer,
			EnteredStateAt:  p.EnteredStateAt,
			DailyIncome:     p.DailyIncome,
			RefundEmployer:  p.RefundEmployer,
			FirstAbsenceDay: p.FirstAbsenceDay,
			PriorConsumed:   p.PriorConsumed,
			PriorUsage:      p.PriorUsage,
			DeathDate:       p.DeathDate,
			TimeBarCutoff:   p.TimeBarCutoff,
			RevisionReason:  p.RevisionReason,
			EmployerPeriod:  p.EmployerPeriod,
			DocumentIDs:     append([]string(nil), p.DocumentIDs...),
		})
		for _, d := range p.Timeline.Days() {
			e, _ := p.Timeline.At(d)
			v.VisitTimelineDay(p.ID, d, e)
		}
		for _, locked := range p.Timeline.LockedPeriods() {
			v.VisitLockedPeriod(p.ID, locked)
		}
		for _, s := range p.Settlements {
			v.VisitSettlement(p.ID, s)
		}
		for _, kind := range p.OutstandingNeeds() {
			v.VisitNeed(p.ID, kind)
		}
		for _, entry := range p.Log {
			v.VisitLogEntry(p.ID, entry)
		}
	}
}

// =============================================================================
// BUILDER - Reconstruction from a traversal
// =============================================================================

// Builder rebuilds a Person from visitor calls. Feed it the same traversal
// Accept produces and Build returns an equivalent model.
type Builder struct {
	cfg       Config
	observers Observers
	needs     DataRequester

	person  *Person
	current *BenefitPeriod
	byID    map[uuid.UUID]*BenefitPeriod
}

var _ Visitor = (*Builder)(nil)

func NewBuilder(cfg Config, observers Observers, needs DataRequester) *Builder {
	return &Builder{cfg: cfg, observers: observers, needs: needs, byID: make(map[uuid.UUID]*BenefitPeriod)}
}

func (b *Builder) VisitPerson(personID string) {
	b.person = NewPerson(personID, b.cfg, b.observers, b.needs)
}

func (b *Builder) VisitPeriod(meta PeriodMeta) {
	p := &BenefitPeriod{
		ID:              meta.ID,
		PersonID:        meta.PersonID,
		Employer:        meta.Employer,
		Declared:        meta.Declared,
		Computed:        meta.Computed,
		Timeline:        timeline.New(),
		State:           meta.State,
		TriggerDate:     meta.TriggerDate,
		MultiEmployer:   meta.MultiEmployer,
		EnteredStateAt:  meta.EnteredStateAt,
		DailyIncome:     meta.DailyIncome,
		RefundEmployer:  meta.RefundEmployer,
		FirstAbsenceDay: meta.FirstAbsenceDay,
		PriorConsumed:   meta.PriorConsumed,
		PriorUsage:      meta.PriorUsage,
		DeathDate:       meta.DeathDate,
		TimeBarCutoff:   meta.TimeBarCutoff,
		RevisionReason:  meta.RevisionReason,
		EmployerPeriod:  meta.EmployerPeriod,
		DocumentIDs:     append([]string(nil), meta.DocumentIDs...),
		outstanding:     make(map[NeedKind]bool),
	}
	b.byID[p.ID] = p
	b.current = p
	b.person.AttachPeriod(p)
}

func (b *Builder) VisitTimelineDay(periodID uuid.UUID, date timeline.Date, entry timeline.Entry) {
	if p := b.byID[periodID]; p != nil {
		p.Timeline.Set(date, entry.Day, entry.Source)
	}
}

func (b *Builder) VisitLockedPeriod(periodID uuid.UUID, locked timeline.Period) {
	if p := b.byID[periodID]; p != nil {
		p.Timeline.Lock(locked)
	}
}

func (b *Builder) VisitSettlement(periodID uuid.UUID, s *settlement.Settlement) {
	if p := b.byID[periodID]; p != nil {
		p.Settlements = append(p.Settlements, s)
	}
}

func (b *Builder) VisitNeed(periodID uuid.UUID, kind NeedKind) {
	if p := b.byID[periodID]; p != nil {
		p.RestoreOutstanding(kind)
	}
}

func (b *Builder) VisitLogEntry(periodID uuid.UUID, entry LogEntry) {
	if p := b.byID[periodID]; p != nil {
		p.Log = append(p.Log, entry)
	}
}

// Build returns the reconstructed person.
func (b *Builder) Build() *Person { return b.person }
