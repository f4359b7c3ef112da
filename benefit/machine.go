/*
machine.go - The benefit period lifecycle machine

PURPOSE:
  Drives a period through intake, eligibility, history, approval and
  settlement as documents arrive. The machine is a pure transition table:
  (state, document kind) -> handler. States carry no behavior; handlers
  compute the next state and queue side effects (data requests, observer
  notifications) through the machine.

TRANSITION RULES:
  - A document kind with no entry for the current state is a workflow-order
    violation: logged as an error and, for non-terminal states, the period
    is forced to manual handling. Documents are expected in order; silent
    reordering is not allowed.
  - Terminal states swallow documents with a recorded warning.
  - Reminders are handled globally: any non-terminal state whose dwell time
    is exceeded goes to manual handling.

SIDE EFFECTS:
  Handlers request external data ("needs") idempotently and notify the
  injected observers in causal order. Nothing here does I/O.

SEE ALSO:
  - state.go:  the state enum and phases
  - person.go: routing, sibling coordination, revision
*/
package benefit

import (
	"fmt"
	"time"

	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// Machine executes transitions for the periods of one person. It is created
// by the Person aggregate and shares its configuration and outbound
// contracts.
type Machine struct {
	cfg       Config
	observers Observers
	needs     DataRequester
	person    *Person
}

type transitionFunc func(m *Machine, p *BenefitPeriod, doc Document) (State, error)

// transitions is the full table. Missing entries mean "unexpected document";
// the reminder kind is handled before table lookup.
var transitions = map[State]map[timeline.SourceKind]transitionFunc{
	StateStart: {
		timeline.KindSickNote:    onOpeningSickNote,
		timeline.KindApplication: onOpeningApplication,
	},
	StateAwaitingSickNote: {
		timeline.KindSickNote:     onSickNoteWhileAwaiting,
		timeline.KindApplication:  absorbAndStay,
		timeline.KindIncomeReport: recordEconomicsAndStay,
	},
	StateAwaitingApplicationAndIncomeReport: {
		timeline.KindSickNote:     absorbAndStay,
		timeline.KindApplication:  onApplicationThenAwaitIncome,
		timeline.KindIncomeReport: onIncomeThenAwaitApplication,
	},
	StateAwaitingApplication: {
		timeline.KindSickNote:    absorbAndStay,
		timeline.KindApplication: onApplicationCompletesIntake,
	},
	StateAwaitingIncomeReport: {
		timeline.KindSickNote:     absorbAndStay,
		timeline.KindApplication:  absorbAndStay,
		timeline.KindIncomeReport: onIncomeCompletesIntake,
	},
	StateAwaitingPriorPeriod: {
		timeline.KindSickNote:     absorbAndStay,
		timeline.KindApplication:  absorbAndStay,
		timeline.KindIncomeReport: recordEconomicsAndStay,
	},
	StateExtensionAwaitingApplication: {
		timeline.KindSickNote:     absorbAndStay,
		timeline.KindApplication:  onExtensionApplication,
		timeline.KindIncomeReport: recordEconomicsAndStay,
	},
	StateExtensionAwaitingIncomeReport: {
		timeline.KindSickNote:     absorbAndStay,
		timeline.KindApplication:  absorbAndStay,
		timeline.KindIncomeReport: onExtensionIncome,
	},
	StateAwaitingEligibilityBasis: {
		timeline.KindSickNote:         absorbAndStay,
		timeline.KindApplication:      absorbAndStay,
		timeline.KindEligibilityBasis: onEligibilityBasis,
	},
	StateAwaitingEligibilityAssessment: {
		timeline.KindManualOverride: onEligibilityAssessment,
	},
	StateAwaitingHistory: {
		timeline.KindSickNote:            absorbAndStay,
		timeline.KindApplication:         absorbAndStay,
		timeline.KindOtherBenefitHistory: onHistory,
	},
	StateAwaitingSiblings: {
		timeline.KindSickNote:    absorbAndStay,
		timeline.KindApplication: absorbAndStay,
	},
	StateAwaitingSimulation: {
		timeline.KindSimulationResult: onSimulationResult,
	},
	StateAwaitingApproval: {
		timeline.KindPaymentApproval: onPaymentApproval,
	},
	StateAwaitingManualApproval: {
		timeline.KindPaymentApproval: onPaymentApproval,
	},
	StateSendingPayment: {
		timeline.KindPaymentOutcome: onPaymentOutcome,
	},
	StateAwaitingPaymentOutcome: {
		timeline.KindPaymentOutcome: onPaymentOutcome,
	},
	StatePaymentFailed: {
		timeline.KindManualOverride: onPaymentRetry,
	},
	StateRevisionAwaitingHistory: {
		timeline.KindOtherBenefitHistory: onRevisionHistory,
	},
	StateRevisionAwaitingApproval: {
		timeline.KindPaymentApproval: onRevisionApproval,
	},
	StateRevisionSendingPayment: {
		timeline.KindPaymentOutcome: onRevisionOutcome,
	},
	StateRevisionAwaitingPaymentOutcome: {
		timeline.KindPaymentOutcome: onRevisionOutcome,
	},
}

// Handle routes one document through the table and applies the resulting
// transition.
func (m *Machine) Handle(p *BenefitPeriod, doc Document) error {
	now := doc.ReceivedAt()
	p.sawDocument(doc.DocumentID())

	if p.State.Terminal() {
		p.logf(LogWarning, doc.DocumentID(),
			fmt.Sprintf("document %s ignored: period is in terminal state %s", doc.Kind(), p.State), now)
		return nil
	}

	if doc.Kind() == timeline.KindReminder {
		return m.handleReminder(p, doc)
	}

	result := doc.Validate(p)
	for _, w := range result.Warnings {
		p.logf(LogWarning, doc.DocumentID(), w, now)
	}
	if result.Err != nil {
		if IsFunctional(result.Err) {
			p.logf(LogError, doc.DocumentID(), result.Err.Error(), now)
			m.reject(p, result.Err.Error(), now)
			return nil
		}
		return result.Err
	}

	fn, ok := transitions[p.State][doc.Kind()]
	if !ok {
		err := &UnexpectedDocumentError{State: p.State, Kind: doc.Kind()}
		p.logf(LogError, doc.DocumentID(), err.Error(), now)
		m.toState(p, StateManualHandling, now)
		return nil
	}

	next, err := fn(m, p, doc)
	if err != nil {
		p.logf(LogError, doc.DocumentID(), err.Error(), now)
		if IsInconsistency(err) {
			m.toState(p, StateManualHandling, now)
			return err
		}
		m.toState(p, StateManualHandling, now)
		return nil
	}
	m.toState(p, next, now)
	return nil
}

// handleReminder enforces the per-state dwell deadline.
func (m *Machine) handleReminder(p *BenefitPeriod, doc Document) error {
	r, ok := doc.(ReminderCarrier)
	if !ok {
		return &InconsistencyError{Invariant: "reminder document without clock"}
	}
	now := r.Now()
	if now.Sub(p.EnteredStateAt) > m.cfg.MaxDwell {
		p.logf(LogError, doc.DocumentID(),
			fmt.Sprintf("no progress in state %s since %s", p.State, p.EnteredStateAt.Format(time.RFC3339)), now)
		m.toState(p, StateManualHandling, now)
	}
	return nil
}

// toState applies a transition, keeps the dwell clock, and notifies
// observers. Unchanged states are a no-op.
func (m *Machine) toState(p *BenefitPeriod, next State, now time.Time) {
	if next == p.State {
		return
	}
	previous := p.State
	p.State = next
	p.EnteredStateAt = now
	m.observers.OnStateChanged(p.ID, previous, next, m.cfg.Deadline(now))
}

// reject ends the period with a functional rejection.
func (m *Machine) reject(p *BenefitPeriod, reason string, now time.Time) {
	m.toState(p, StateRejected, now)
	m.observers.OnPeriodRejected(p.ID, reason)
}

// request issues a data request unless one of the kind is outstanding.
func (m *Machine) request(p *BenefitPeriod, kind NeedKind, params map[string]string) {
	if p.markOutstanding(kind) {
		m.needs.RequestData(p.ID, kind, params)
	}
}

// cancel withdraws an outstanding data request.
func (m *Machine) cancel(p *BenefitPeriod, kind NeedKind) {
	if p.clearOutstanding(kind) {
		m.needs.CancelRequest(p.ID, kind)
	}
}

// =============================================================================
// SHARED HANDLER PIECES
// =============================================================================

// absorb merges a document's timeline fragment into the period. Conflicts
// with locked history are an escalation, not a silent drop.
func (m *Machine) absorb(p *BenefitPeriod, doc Document) error {
	carrier, ok := doc.(TimelineCarrier)
	if !ok {
		return nil
	}
	merged, conflicts := p.Timeline.Merge(carrier.TimelineFragment(), m.cfg.Ranking)
	if len(conflicts) > 0 {
		for _, c := range conflicts {
			p.logf(LogError, doc.DocumentID(), c.Error(), doc.ReceivedAt())
		}
		return &RejectionError{Reason: fmt.Sprintf("%d conflict(s) with finalized days", len(conflicts))}
	}
	p.Timeline = merged
	p.recomputeSpan()
	if p.TriggerDate.IsZero() {
		if first, ok := p.Timeline.FirstSickDay(); ok {
			p.TriggerDate = first
		}
	}
	if p.TimeBarCutoff.IsZero() {
		p.TimeBarCutoff = m.cfg.TimeBarCutoff(doc.ReceivedAt())
	}
	return nil
}

// recordEconomics stores the income report's payload and merges any claimed
// employer-period days.
func (m *Machine) recordEconomics(p *BenefitPeriod, doc Document) error {
	ec, ok := doc.(EconomicCarrier)
	if !ok {
		return &InconsistencyError{Invariant: "income report without economic payload"}
	}
	p.DailyIncome = ec.DailyIncome()
	p.RefundEmployer = ec.RefundToEmployer()
	first := ec.FirstAbsenceDay()
	if !first.IsZero() {
		p.FirstAbsenceDay = &first
		p.TriggerDate = first
	}
	if claim := ec.EmployerPeriodClaim(); claim != nil {
		fragment := timeline.New()
		fragment.SetPeriod(*claim, timeline.EmployerPeriodDay(), timeline.Source{
			Kind:       doc.Kind(),
			DocumentID: doc.DocumentID(),
			ReceivedAt: doc.ReceivedAt(),
		})
		merged, conflicts := p.Timeline.Merge(fragment, m.cfg.Ranking)
		if len(conflicts) > 0 {
			return &RejectionError{Reason: "employer period claim conflicts with finalized days"}
		}
		p.Timeline = merged
		p.recomputeSpan()
	}
	return nil
}

// enterEligibility requests the shared eligibility basis. Periods that
// inherit a trigger date from a finished sibling skip straight to history.
func (m *Machine) enterEligibility(p *BenefitPeriod) State {
	if shared := m.person.eligibilityResolvedFor(p.TriggerDate); shared {
		return m.enterHistory(p)
	}
	m.request(p, NeedEligibilityBasis, map[string]string{"trigger_date": p.TriggerDate.String()})
	return StateAwaitingEligibilityBasis
}

// enterHistory requests the other-benefit overlap history.
func (m *Machine) enterHistory(p *BenefitPeriod) State {
	m.request(p, NeedBenefitHistory, nil)
	return StateAwaitingHistory
}

// runSettlement computes a settlement once history has resolved and decides
// where the period goes next. An incomplete settlement means a data gap:
// the period asks for the missing input instead of failing.
func (m *Machine) runSettlement(p *BenefitPeriod, now time.Time) (State, error) {
	if !p.Timeline.HasSickDay() {
		return p.State, &InconsistencyError{Invariant: "benefit period with no sickness days"}
	}

	p.EmployerPeriod = settlement.ComputeEmployerPeriod(p.Timeline, m.person.priorEmployerUsage(p), m.cfg.Settlement)

	in := settlement.Input{
		Timeline:          p.Timeline,
		EmployerPeriod:    p.EmployerPeriod,
		Rules:             m.cfg.Settlement,
		DailyIncome:       p.DailyIncome,
		RefundToEmployer:  p.RefundEmployer,
		PriorConsumedDays: m.person.consumedBefore(p),
		PriorMaximumDate:  m.person.priorMaximumDate(p),
		DeathDate:         p.DeathDate,
		TimeBarCutoff:     p.TimeBarCutoff,
		Prior:             p.LastSettlement(),
		Now:               now,
	}
	s := settlement.Settle(in)
	p.Settlements = append(p.Settlements, s)
	m.observers.OnSettlementProduced(p.ID, s)

	if s.Incomplete {
		for _, reason := range s.IncompleteReasons {
			p.logf(LogWarning, "", "settlement incomplete: "+reason, now)
		}
		m.request(p, NeedIncomeReport, nil)
		return StateAwaitingIncomeReport, nil
	}

	m.request(p, NeedSimulation, nil)
	return StateAwaitingSimulation, nil
}

// finalize locks the settled span and closes the period.
func (m *Machine) finalize(p *BenefitPeriod, terminal State) State {
	if span, ok := p.Timeline.Span(); ok {
		p.Timeline.Lock(span)
	}
	return terminal
}

// =============================================================================
// INTAKE HANDLERS
// =============================================================================

func onOpeningSickNote(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}
	if prior := m.person.unfinishedPredecessor(p); prior != nil {
		return StateAwaitingPriorPeriod, nil
	}
	return m.person.postPredecessorState(p), nil
}

func onOpeningApplication(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}
	return StateAwaitingSickNote, nil
}

func onSickNoteWhileAwaiting(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}
	if prior := m.person.unfinishedPredecessor(p); prior != nil {
		return StateAwaitingPriorPeriod, nil
	}
	return StateAwaitingIncomeReport, nil
}

func absorbAndStay(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}
	return p.State, nil
}

func recordEconomicsAndStay(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.recordEconomics(p, doc); err != nil {
		return p.State, err
	}
	return p.State, nil
}

func onApplicationThenAwaitIncome(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}
	return StateAwaitingIncomeReport, nil
}

func onIncomeThenAwaitApplication(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.recordEconomics(p, doc); err != nil {
		return p.State, err
	}
	return StateAwaitingApplication, nil
}

func onApplicationCompletesIntake(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}
	return m.enterEligibility(p), nil
}

func onIncomeCompletesIntake(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.recordEconomics(p, doc); err != nil {
		return p.State, err
	}
	return m.enterEligibility(p), nil
}

func onExtensionApplication(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}
	if p.DailyIncome.IsZero() {
		return StateExtensionAwaitingIncomeReport, nil
	}
	return m.enterHistory(p), nil
}

func onExtensionIncome(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	if err := m.recordEconomics(p, doc); err != nil {
		return p.State, err
	}
	return m.enterHistory(p), nil
}

// =============================================================================
// ELIGIBILITY HANDLERS
// =============================================================================

func onEligibilityBasis(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	carrier, ok := doc.(EligibilityCarrier)
	if !ok {
		return p.State, &InconsistencyError{Invariant: "eligibility basis without payload"}
	}
	m.cancel(p, NeedEligibilityBasis)

	if death := carrier.DeathDate(); death != nil {
		p.DeathDate = death
	}
	eligible, reason := carrier.Eligible()
	if !eligible {
		m.reject(p, reason, doc.ReceivedAt())
		return StateRejected, nil
	}
	if carrier.RequiresAssessment() {
		return StateAwaitingEligibilityAssessment, nil
	}
	m.person.markEligibilityResolved(p.TriggerDate)
	return m.enterHistory(p), nil
}

func onEligibilityAssessment(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	// The assessing case worker may reclassify days in the same override.
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}
	m.person.markEligibilityResolved(p.TriggerDate)
	return m.enterHistory(p), nil
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

func onHistory(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	carrier, ok := doc.(HistoryCarrier)
	if !ok {
		return p.State, &InconsistencyError{Invariant: "history document without payload"}
	}
	m.cancel(p, NeedBenefitHistory)

	p.PriorConsumed = carrier.PriorConsumedDays()
	p.PriorUsage = carrier.PriorEmployerUsage()
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}

	if !m.person.mayCalculate(p) {
		return StateAwaitingSiblings, nil
	}
	return m.runSettlement(p, doc.ReceivedAt())
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

func onSimulationResult(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	carrier, ok := doc.(VerdictCarrier)
	if !ok {
		return p.State, &InconsistencyError{Invariant: "simulation result without verdict"}
	}
	m.cancel(p, NeedSimulation)

	okVerdict, detail := carrier.Verdict()
	if !okVerdict {
		return p.State, &RejectionError{Reason: "simulation failed: " + detail}
	}
	if detail != "" {
		p.logf(LogWarning, doc.DocumentID(), "simulation flagged: "+detail, doc.ReceivedAt())
		return StateAwaitingManualApproval, nil
	}
	return StateAwaitingApproval, nil
}

func onPaymentApproval(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	carrier, ok := doc.(ApprovalCarrier)
	if !ok {
		return p.State, &InconsistencyError{Invariant: "payment approval without verdict"}
	}
	approved, detail := carrier.Verdict()
	if !approved {
		return p.State, &RejectionError{Reason: "approval denied: " + detail}
	}
	actor, automatic := carrier.ApprovedBy()
	if !automatic {
		p.logf(LogInfo, doc.DocumentID(), "approved by "+actor, doc.ReceivedAt())
	}

	last := p.LastSettlement()
	if last == nil {
		return p.State, &InconsistencyError{Invariant: "approval without settlement"}
	}
	if !last.HasPayableLines() {
		return m.finalize(p, StateSettledNoPayment), nil
	}
	m.request(p, NeedPaymentDispatch, map[string]string{"settlement_id": last.ID})
	return StateSendingPayment, nil
}

// =============================================================================
// DISBURSEMENT HANDLERS
// =============================================================================

// outcomeDetailReceived is the transport acknowledgment; the final verdict
// follows in a second outcome document.
const outcomeDetailReceived = "received"

func onPaymentOutcome(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	carrier, ok := doc.(VerdictCarrier)
	if !ok {
		return p.State, &InconsistencyError{Invariant: "payment outcome without verdict"}
	}
	accepted, detail := carrier.Verdict()
	if !accepted {
		p.logf(LogError, doc.DocumentID(), "disbursement rejected: "+detail, doc.ReceivedAt())
		// The dispatch is dead; a retry must issue a fresh request.
		m.cancel(p, NeedPaymentDispatch)
		return StatePaymentFailed, nil
	}
	if detail == outcomeDetailReceived && p.State == StateSendingPayment {
		return StateAwaitingPaymentOutcome, nil
	}
	m.cancel(p, NeedPaymentDispatch)
	return m.finalize(p, StateSettled), nil
}

func onPaymentRetry(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	last := p.LastSettlement()
	if last == nil {
		return p.State, &InconsistencyError{Invariant: "payment retry without settlement"}
	}
	m.request(p, NeedPaymentDispatch, map[string]string{"settlement_id": last.ID})
	return StateSendingPayment, nil
}

// =============================================================================
// REVISION HANDLERS
// =============================================================================

func onRevisionHistory(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	carrier, ok := doc.(HistoryCarrier)
	if !ok {
		return p.State, &InconsistencyError{Invariant: "history document without payload"}
	}
	m.cancel(p, NeedBenefitHistory)

	p.PriorConsumed = carrier.PriorConsumedDays()
	p.PriorUsage = carrier.PriorEmployerUsage()
	if err := m.absorb(p, doc); err != nil {
		return p.State, err
	}

	next, err := m.runSettlement(p, doc.ReceivedAt())
	if err != nil {
		return p.State, err
	}
	if next == StateAwaitingIncomeReport {
		// A revision must not wander back into intake: a data gap here needs
		// a human.
		return p.State, &RejectionError{Reason: "revision settlement incomplete"}
	}
	m.cancel(p, NeedSimulation)
	return StateRevisionAwaitingApproval, nil
}

func onRevisionApproval(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	carrier, ok := doc.(ApprovalCarrier)
	if !ok {
		return p.State, &InconsistencyError{Invariant: "payment approval without verdict"}
	}
	approved, detail := carrier.Verdict()
	if !approved {
		return p.State, &RejectionError{Reason: "revision approval denied: " + detail}
	}
	last := p.LastSettlement()
	if last == nil {
		return p.State, &InconsistencyError{Invariant: "approval without settlement"}
	}
	if len(last.EmployerOrder.Changes()) == 0 && len(last.PersonOrder.Changes()) == 0 {
		p.logf(LogInfo, doc.DocumentID(), "revision produced no change", doc.ReceivedAt())
		return m.finalize(p, StateSettled), nil
	}
	m.request(p, NeedPaymentDispatch, map[string]string{"settlement_id": last.ID})
	return StateRevisionSendingPayment, nil
}

func onRevisionOutcome(m *Machine, p *BenefitPeriod, doc Document) (State, error) {
	carrier, ok := doc.(VerdictCarrier)
	if !ok {
		return p.State, &InconsistencyError{Invariant: "payment outcome without verdict"}
	}
	accepted, detail := carrier.Verdict()
	if !accepted {
		p.logf(LogError, doc.DocumentID(), "disbursement rejected: "+detail, doc.ReceivedAt())
		// The dispatch is dead; a retry must issue a fresh request.
		m.cancel(p, NeedPaymentDispatch)
		return StatePaymentFailed, nil
	}
	if detail == outcomeDetailReceived && p.State == StateRevisionSendingPayment {
		return StateRevisionAwaitingPaymentOutcome, nil
	}
	m.cancel(p, NeedPaymentDispatch)

	last := p.LastSettlement()
	if last != nil && len(last.EmployerOrder.Active()) == 0 && len(last.PersonOrder.Active()) == 0 {
		// The revision cancelled every line: this period no longer pays and
		// is superseded by whatever replaced it.
		return m.finalize(p, StateSuperseded), nil
	}
	return m.finalize(p, StateSettled), nil
}
