package benefit

// =============================================================================
// STATE - Lifecycle states of a benefit period
// =============================================================================

// State is the enum tag of the period lifecycle machine. Transitions live in
// machine.go as a pure table; states carry no behavior of their own.
type State string

// Intake phase: waiting for the documents that open a period.
const (
	StateStart                              State = "start"
	StateAwaitingSickNote                   State = "awaiting_sick_note"
	StateAwaitingApplicationAndIncomeReport State = "awaiting_application_and_income_report"
	StateAwaitingApplication                State = "awaiting_application"
	StateAwaitingIncomeReport               State = "awaiting_income_report"
	StateAwaitingPriorPeriod                State = "awaiting_prior_period"
	StateExtensionAwaitingApplication       State = "extension_awaiting_application"
	StateExtensionAwaitingIncomeReport      State = "extension_awaiting_income_report"
)

// Eligibility phase: waiting for the shared eligibility basis.
const (
	StateAwaitingEligibilityBasis      State = "awaiting_eligibility_basis"
	StateAwaitingEligibilityAssessment State = "awaiting_eligibility_assessment"
)

// History phase: waiting for other-benefit history, then settlement.
const (
	StateAwaitingHistory  State = "awaiting_history"
	StateAwaitingSiblings State = "awaiting_siblings"
	StateCalculating      State = "calculating"
)

// Approval phase: simulation and human/automatic approval.
const (
	StateAwaitingSimulation     State = "awaiting_simulation"
	StateAwaitingApproval       State = "awaiting_approval"
	StateAwaitingManualApproval State = "awaiting_manual_approval"
)

// Settled phase: disbursement and closure.
const (
	StateSendingPayment         State = "sending_payment"
	StateAwaitingPaymentOutcome State = "awaiting_payment_outcome"
	StatePaymentFailed          State = "payment_failed"
	StateSettled                State = "settled"
	StateSettledNoPayment       State = "settled_no_payment"
)

// Revision: re-entry of already settled periods.
const (
	StateRevisionAwaitingHistory        State = "revision_awaiting_history"
	StateRevisionCalculating            State = "revision_calculating"
	StateRevisionAwaitingApproval       State = "revision_awaiting_approval"
	StateRevisionSendingPayment         State = "revision_sending_payment"
	StateRevisionAwaitingPaymentOutcome State = "revision_awaiting_payment_outcome"
	StateSuperseded                     State = "superseded"
)

// Exception: handed over to manual or legacy processing.
const (
	StateManualHandling State = "manual_handling"
	StateRejected       State = "rejected"
)

// Phase groups states for coordination decisions (sibling ordering keys off
// whether a period has passed the History phase).
type Phase string

const (
	PhaseIntake      Phase = "intake"
	PhaseEligibility Phase = "eligibility"
	PhaseHistory     Phase = "history"
	PhaseApproval    Phase = "approval"
	PhaseSettled     Phase = "settled"
	PhaseException   Phase = "exception"
)

func (s State) Phase() Phase {
	switch s {
	case StateStart, StateAwaitingSickNote, StateAwaitingApplicationAndIncomeReport,
		StateAwaitingApplication, StateAwaitingIncomeReport, StateAwaitingPriorPeriod,
		StateExtensionAwaitingApplication, StateExtensionAwaitingIncomeReport:
		return PhaseIntake
	case StateAwaitingEligibilityBasis, StateAwaitingEligibilityAssessment:
		return PhaseEligibility
	case StateAwaitingHistory, StateAwaitingSiblings, StateCalculating,
		StateRevisionAwaitingHistory, StateRevisionCalculating:
		return PhaseHistory
	case StateAwaitingSimulation, StateAwaitingApproval, StateAwaitingManualApproval,
		StateRevisionAwaitingApproval:
		return PhaseApproval
	case StateSendingPayment, StateAwaitingPaymentOutcome, StatePaymentFailed,
		StateSettled, StateSettledNoPayment,
		StateRevisionSendingPayment, StateRevisionAwaitingPaymentOutcome, StateSuperseded:
		return PhaseSettled
	case StateManualHandling, StateRejected:
		return PhaseException
	default:
		return PhaseException
	}
}

// Terminal states accept no further processing; documents addressed to a
// terminal period are recorded as warnings. Revision is the one exception:
// it may reopen StateSettled and StateSettledNoPayment.
func (s State) Terminal() bool {
	switch s {
	case StateSettled, StateSettledNoPayment, StateSuperseded, StateManualHandling, StateRejected:
		return true
	default:
		return false
	}
}

// Reopenable reports whether a revision may pull the period back into the
// history phase.
func (s State) Reopenable() bool {
	return s == StateSettled || s == StateSettledNoPayment
}

// HistoryReady reports whether the period has caught up far enough for
// sibling coordination: it has received its history or is past that point.
func (s State) HistoryReady() bool {
	if s == StateAwaitingSiblings || s == StateCalculating {
		return true
	}
	switch s.Phase() {
	case PhaseApproval, PhaseSettled:
		return true
	default:
		return false
	}
}
