package timeline

import "time"

// =============================================================================
// SOURCE - Provenance of a classified day
// =============================================================================

// SourceKind identifies the kind of inbound document a day classification came
// from. The kinds double as the vocabulary of the merge tie-break ranking, so
// they live here rather than next to the concrete document types.
type SourceKind string

const (
	KindSickNote            SourceKind = "sick_note"
	KindApplication         SourceKind = "application"
	KindIncomeReport        SourceKind = "income_report"
	KindEligibilityBasis    SourceKind = "eligibility_basis"
	KindOtherBenefitHistory SourceKind = "other_benefit_history"
	KindSimulationResult    SourceKind = "simulation_result"
	KindPaymentApproval     SourceKind = "payment_approval"
	KindPaymentOutcome      SourceKind = "payment_outcome"
	KindManualOverride      SourceKind = "manual_override"
	KindRevision            SourceKind = "revision"
	KindReminder            SourceKind = "reminder"
)

// Source records where a day classification came from. It is carried for
// tie-breaking and audit only; business logic never branches on it beyond
// the ranking priority.
type Source struct {
	Kind       SourceKind
	DocumentID string
	ReceivedAt time.Time
}

// =============================================================================
// RANKING - Per-document-kind priority for merge tie-breaks
// =============================================================================

// Ranking maps a document kind to its merge priority. Higher wins. Kinds
// absent from the table rank at zero. The table is configuration: the exact
// ordering between competing kinds is a business rule, not engine logic.
type Ranking map[SourceKind]int

// Priority returns the rank for a kind, zero when unranked.
func (r Ranking) Priority(k SourceKind) int {
	return r[k]
}

// DefaultRanking is the ordering used unless configuration overrides it:
// a manual override beats everything, an application's self-report beats an
// employer's income report, which beats a sick-note's generic day.
func DefaultRanking() Ranking {
	return Ranking{
		KindManualOverride:      90,
		KindApplication:         70,
		KindIncomeReport:        60,
		KindOtherBenefitHistory: 50,
		KindSickNote:            40,
		KindEligibilityBasis:    30,
	}
}

// pick decides between two entries for the same day. It is deliberately
// symmetric: pick(a, b) and pick(b, a) always select the same entry, which is
// what makes Merge commutative and replay-safe.
func (r Ranking) pick(a, b Entry) Entry {
	pa, pb := r.Priority(a.Source.Kind), r.Priority(b.Source.Kind)
	if pa != pb {
		if pa > pb {
			return a
		}
		return b
	}
	if !a.Source.ReceivedAt.Equal(b.Source.ReceivedAt) {
		if a.Source.ReceivedAt.After(b.Source.ReceivedAt) {
			return a
		}
		return b
	}
	// Same priority, same instant: fall back to document id so the outcome
	// stays deterministic regardless of call order.
	if a.Source.DocumentID >= b.Source.DocumentID {
		return a
	}
	return b
}
