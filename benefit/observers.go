package benefit

import (
	"time"

	"github.com/google/uuid"

	"github.com/warp/benefit-engine/settlement"
)

// =============================================================================
// OUTBOUND CONTRACTS - Observers and data requests
// =============================================================================
// Both contracts are injected at construction. Delivery order matches the
// causal order of transitions within one document-handling call.

// Observers receives lifecycle notifications. Implementations must not call
// back into the engine.
type Observers interface {
	OnStateChanged(periodID uuid.UUID, previous, current State, deadline time.Time)
	OnSettlementProduced(periodID uuid.UUID, s *settlement.Settlement)
	OnRevisionPublished(summary RevisionSummary)
	OnPeriodRejected(periodID uuid.UUID, reason string)
}

// NeedKind names the external data a period can request.
type NeedKind string

const (
	NeedEligibilityBasis NeedKind = "eligibility_basis"
	NeedBenefitHistory   NeedKind = "other_benefit_history"
	NeedIncomeReport     NeedKind = "income_report"
	NeedSimulation       NeedKind = "simulation"
	NeedPaymentDispatch  NeedKind = "payment_dispatch"
)

// DataRequester forwards "need" requests to the outside. Calls are
// idempotent at the engine level: a period never requests the same kind
// twice while one request is outstanding.
type DataRequester interface {
	RequestData(periodID uuid.UUID, kind NeedKind, params map[string]string)
	CancelRequest(periodID uuid.UUID, kind NeedKind)
}

// NopObservers and NopRequester keep wiring optional in tests.

type NopObservers struct{}

func (NopObservers) OnStateChanged(uuid.UUID, State, State, time.Time)          {}
func (NopObservers) OnSettlementProduced(uuid.UUID, *settlement.Settlement)     {}
func (NopObservers) OnRevisionPublished(RevisionSummary)                        {}
func (NopObservers) OnPeriodRejected(uuid.UUID, string)                         {}

type NopRequester struct{}

func (NopRequester) RequestData(uuid.UUID, NeedKind, map[string]string) {}
func (NopRequester) CancelRequest(uuid.UUID, NeedKind)                  {}

// =============================================================================
// ACTIVITY LOG - Accumulated warnings and errors per period
// =============================================================================

type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogEntry is one line of a period's activity log. The log travels with the
// period into manual handling so a human can resolve it.
type LogEntry struct {
	Level      LogLevel
	Message    string
	DocumentID string
	At         time.Time
}
