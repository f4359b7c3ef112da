/*
person.go - Per-person aggregate and cross-period coordination

PURPOSE:
  One Person owns every benefit period of a person and is the unit of work:
  documents for one person are processed strictly in arrival order, one at a
  time. Periods are stored in an arena and referenced by id; a period never
  mutates a sibling, it only asks the Person read-only questions ("is the
  prior period finished?", "may I calculate yet?").

COORDINATION:
  - Gap vs extension: a new absence within the continuation window of a
    finished period of the same employer continues it (inherits trigger date
    and economics); a larger gap opens an independent period.
  - Multi-employer ordering: overlapping periods for different employers
    reach the history phase in lock-step and calculate in ascending end-date
    order. Waiting periods park in the awaiting-siblings state and are woken
    by a sibling's transition, not by polling.
  - Revision: a revision document builds an ephemeral episode, reopens every
    settled period its window touches, and publishes exactly one aggregate
    notification.
*/
package benefit

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// Person is the per-person arena of benefit periods.
type Person struct {
	ID      string
	Periods []*BenefitPeriod

	cfg       Config
	observers Observers
	needs     DataRequester
	machine   *Machine

	// eligibilityResolved remembers trigger dates whose shared eligibility
	// basis already arrived, so sibling periods skip the duplicate request.
	eligibilityResolved map[timeline.Date]bool
}

func NewPerson(id string, cfg Config, observers Observers, needs DataRequester) *Person {
	p := &Person{
		ID:                  id,
		cfg:                 cfg,
		observers:           observers,
		needs:               needs,
		eligibilityResolved: make(map[timeline.Date]bool),
	}
	p.machine = &Machine{cfg: cfg, observers: observers, needs: needs, person: p}
	return p
}

// Config returns the rule tables the person runs under.
func (ps *Person) Config() Config { return ps.cfg }

// PeriodByID finds a period in the arena.
func (ps *Person) PeriodByID(id uuid.UUID) *BenefitPeriod {
	for _, p := range ps.Periods {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AttachPeriod inserts a reconstructed period into the arena. Used by the
// persistence builder only.
func (ps *Person) AttachPeriod(p *BenefitPeriod) {
	ps.Periods = append(ps.Periods, p)
	if p.State.Phase() == PhaseHistory || p.State.Phase() == PhaseApproval || p.State.Phase() == PhaseSettled {
		ps.eligibilityResolved[p.TriggerDate] = true
	}
}

// =============================================================================
// DOCUMENT INTAKE
// =============================================================================

// HandleDocument is the single entry point for one inbound document. It
// routes to the owning period(s), creating a new period when a sick-note or
// application opens a gap no existing period covers, then wakes any parked
// siblings whose turn has come.
func (ps *Person) HandleDocument(doc Document) error {
	if doc.Kind() == timeline.KindRevision {
		return ps.handleRevision(doc)
	}

	if doc.Kind() == timeline.KindReminder {
		for _, p := range ps.Periods {
			if p.State.Terminal() {
				continue
			}
			if err := ps.machine.Handle(p, doc); err != nil {
				return err
			}
		}
		ps.wake(doc.ReceivedAt())
		return nil
	}

	routed := false
	for _, p := range ps.Periods {
		if p.State.Terminal() || !doc.RelevantTo(p) {
			continue
		}
		routed = true
		if err := ps.machine.Handle(p, doc); err != nil {
			return err
		}
	}

	if !routed {
		switch doc.Kind() {
		case timeline.KindSickNote, timeline.KindApplication:
			// A day-carrying document near a settled period is a new absence:
			// it opens a fresh period, which may continue the old claim.
			p := NewBenefitPeriod(ps.ID, employerOf(doc), doc.ReceivedAt())
			ps.Periods = append(ps.Periods, p)
			if err := ps.machine.Handle(p, doc); err != nil {
				return err
			}
		default:
			// Targeted documents may still arrive for a closed period; they
			// are recorded there as warnings instead of failing the intake.
			for _, p := range ps.Periods {
				if !doc.RelevantTo(p) {
					continue
				}
				routed = true
				if err := ps.machine.Handle(p, doc); err != nil {
					return err
				}
			}
			if !routed {
				return fmt.Errorf("%w: no period accepts %s document %s",
					ErrPeriodNotFound, doc.Kind(), doc.DocumentID())
			}
		}
	}

	ps.wake(doc.ReceivedAt())
	return nil
}

// EmployerCarrier lets routing read the owning employer off an opening
// document. Documents without an employer open person-wide periods.
type EmployerCarrier interface {
	EmployerID() string
}

func employerOf(doc Document) string {
	if c, ok := doc.(EmployerCarrier); ok {
		return c.EmployerID()
	}
	return ""
}

// =============================================================================
// WAKE - Sibling and predecessor coordination
// =============================================================================

// wake re-evaluates parked periods after any transition. It loops until a
// full pass changes nothing, because advancing one period can unblock the
// next.
func (ps *Person) wake(now time.Time) {
	for changed := true; changed; {
		changed = false
		for _, p := range ps.Periods {
			switch p.State {
			case StateAwaitingPriorPeriod:
				if ps.advanceAfterPredecessor(p, now) {
					changed = true
				}
			case StateAwaitingSiblings:
				if ps.mayCalculate(p) {
					next, err := ps.machine.runSettlement(p, now)
					if err != nil {
						p.logf(LogError, "", err.Error(), now)
						ps.machine.toState(p, StateManualHandling, now)
					} else {
						ps.machine.toState(p, next, now)
					}
					changed = true
				}
			}
		}
	}
}

// advanceAfterPredecessor moves a parked extension on once its predecessor
// reached a closing state.
func (ps *Person) advanceAfterPredecessor(p *BenefitPeriod, now time.Time) bool {
	prior := ps.unfinishedPredecessor(p)
	if prior != nil {
		return false
	}
	ps.machine.toState(p, ps.postPredecessorState(p), now)
	return true
}

// postPredecessorState decides where a period goes once no predecessor
// blocks it. Extensions continue the same claim: they inherit the anchor
// and the economics collected last time around.
func (ps *Person) postPredecessorState(p *BenefitPeriod) State {
	pred := ps.predecessor(p)
	if pred == nil || !p.extensionOf(pred, ps.cfg.Settlement.ContinuationWindowDays) {
		return StateAwaitingApplicationAndIncomeReport
	}
	p.TriggerDate = pred.TriggerDate
	if p.DailyIncome.IsZero() {
		p.DailyIncome = pred.DailyIncome
		p.RefundEmployer = pred.RefundEmployer
	}
	if p.DailyIncome.IsZero() {
		return StateExtensionAwaitingIncomeReport
	}
	return StateExtensionAwaitingApplication
}

// predecessor returns the latest period of the same employer ending before
// p starts.
func (ps *Person) predecessor(p *BenefitPeriod) *BenefitPeriod {
	var best *BenefitPeriod
	for _, q := range ps.Periods {
		if q == p || q.Employer != p.Employer || q.Computed.Start.IsZero() {
			continue
		}
		if q.Computed.End.Before(p.Computed.Start) {
			if best == nil || q.Computed.End.After(best.Computed.End) {
				best = q
			}
		}
	}
	return best
}

// unfinishedPredecessor returns a predecessor that still blocks p: an
// earlier period of the same employer, within the continuation window, that
// has not reached a closing state.
func (ps *Person) unfinishedPredecessor(p *BenefitPeriod) *BenefitPeriod {
	pred := ps.predecessor(p)
	if pred == nil || pred.State.Terminal() {
		return nil
	}
	if !p.extensionOf(pred, ps.cfg.Settlement.ContinuationWindowDays) {
		return nil
	}
	return pred
}

// overlappingSiblings returns the non-terminal periods of other employers
// sharing days with p.
func (ps *Person) overlappingSiblings(p *BenefitPeriod) []*BenefitPeriod {
	var sibs []*BenefitPeriod
	for _, q := range ps.Periods {
		if q == p || q.Employer == p.Employer || q.State.Terminal() {
			continue
		}
		if !q.Computed.Start.IsZero() && q.Computed.Overlaps(p.Computed) {
			sibs = append(sibs, q)
		}
	}
	return sibs
}

// mayCalculate decides whether p may run settlement now. Overlapping
// periods across employers calculate in ascending end-date order, and only
// once every one of them has its history.
func (ps *Person) mayCalculate(p *BenefitPeriod) bool {
	sibs := ps.overlappingSiblings(p)
	if len(sibs) == 0 {
		return true
	}
	p.MultiEmployer = true
	for _, s := range sibs {
		s.MultiEmployer = true
		if !s.State.HistoryReady() {
			return false
		}
		// A sibling that is due earlier and has not calculated yet goes first.
		if s.State == StateAwaitingSiblings && dueBefore(s, p) {
			return false
		}
	}
	return true
}

// dueBefore orders periods by end date, with the id as a stable tie-break.
func dueBefore(a, b *BenefitPeriod) bool {
	if !a.Computed.End.Equal(b.Computed.End) {
		return a.Computed.End.Before(b.Computed.End)
	}
	return a.ID.String() < b.ID.String()
}

// =============================================================================
// CLAIM-WIDE COUNTERS - Read-only queries across sibling periods
// =============================================================================

// consumedBefore returns the claim-wide consumed benefit days before p's
// own days: the reported history baseline or the highest counter any
// earlier period's settlement reached, whichever is larger.
func (ps *Person) consumedBefore(p *BenefitPeriod) int {
	consumed := p.PriorConsumed
	for _, q := range ps.Periods {
		if q == p || q.Computed.Start.IsZero() || p.Computed.Start.IsZero() {
			continue
		}
		if !q.Computed.End.Before(p.Computed.Start) {
			continue
		}
		if s := q.LastSettlement(); s != nil && s.Timeline.ConsumedDays > consumed {
			consumed = s.Timeline.ConsumedDays
		}
	}
	return consumed
}

// priorMaximumDate returns the latest maximum date any settlement of this
// claim has fixed; it never moves backward.
func (ps *Person) priorMaximumDate(p *BenefitPeriod) *timeline.Date {
	var max *timeline.Date
	consider := func(s *settlement.Settlement) {
		if s == nil || s.Timeline.MaximumDate == nil {
			return
		}
		if max == nil || s.Timeline.MaximumDate.After(*max) {
			max = s.Timeline.MaximumDate
		}
	}
	for _, q := range ps.Periods {
		consider(q.LastSettlement())
	}
	return max
}

// priorEmployerUsage combines the reported employer-period usage with what
// the immediately preceding period of the same employer consumed.
func (ps *Person) priorEmployerUsage(p *BenefitPeriod) settlement.PriorUsage {
	usage := p.PriorUsage
	pred := ps.predecessor(p)
	if pred == nil || !p.extensionOf(pred, ps.cfg.Settlement.ContinuationWindowDays) {
		return usage
	}
	if ep := pred.EmployerPeriod; ep != nil && ep.Span != nil {
		if usage.LastCountedDay == nil || ep.Span.End.After(*usage.LastCountedDay) {
			end := ep.Span.End
			usage = settlement.PriorUsage{
				DaysConsumed:   usage.DaysConsumed + ep.DaysCounted,
				LastCountedDay: &end,
			}
		}
	}
	return usage
}

func (ps *Person) eligibilityResolvedFor(trigger timeline.Date) bool {
	return ps.eligibilityResolved[trigger]
}

func (ps *Person) markEligibilityResolved(trigger timeline.Date) {
	ps.eligibilityResolved[trigger] = true
}

// =============================================================================
// REVISION
// =============================================================================

// handleRevision reopens every settled period the revision window touches.
func (ps *Person) handleRevision(doc Document) error {
	carrier, ok := doc.(RevisionCarrier)
	if !ok {
		return &InconsistencyError{Invariant: "revision document without payload"}
	}

	episode := BeginEpisode(carrier.Reason(), carrier.TriggerDate(), carrier.AffectedWindow())

	ordered := make([]*BenefitPeriod, len(ps.Periods))
	copy(ordered, ps.Periods)
	sort.Slice(ordered, func(i, j int) bool { return dueBefore(ordered[i], ordered[j]) })

	for _, p := range ordered {
		if !p.State.Reopenable() || !episode.Touches(p.Computed) {
			continue
		}
		p.sawDocument(doc.DocumentID())
		p.RevisionReason = carrier.Reason()
		p.Timeline.Unlock(episode.Window())
		p.logf(LogInfo, doc.DocumentID(), "reopened for revision: "+carrier.Reason(), doc.ReceivedAt())
		ps.machine.toState(p, StateRevisionAwaitingHistory, doc.ReceivedAt())
		ps.machine.request(p, NeedBenefitHistory, nil)
		episode.Include(p, ChangeRecalculation)
	}

	episode.Publish(ps.observers)
	return nil
}
