package benefit

import (
	"time"

	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// CONFIG - Business-rule tables injected into the engine
// =============================================================================

// Config bundles the rule tables the engine runs under. Everything here is
// configuration, loaded through the factory package: the merge ranking in
// particular is a business rule to be confirmed with domain owners, not a
// constant of the engine.
type Config struct {
	Ranking    timeline.Ranking
	Settlement settlement.Rules

	// MaxDwell is how long a period may sit in one non-terminal state before
	// a reminder forces it to manual handling.
	MaxDwell time.Duration

	// TimeBarGrace shortens the statutory time bar: the cutoff is
	// (received - TimeBarYears) + grace.
	TimeBarGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		Ranking:    timeline.DefaultRanking(),
		Settlement: settlement.DefaultRules(),
		MaxDwell:   30 * 24 * time.Hour,
	}
}

// TimeBarCutoff computes the earliest payable day relative to a document's
// arrival instant.
func (c Config) TimeBarCutoff(receivedAt time.Time) timeline.Date {
	cutoff := receivedAt.AddDate(-c.Settlement.TimeBarYears, 0, 0).Add(c.TimeBarGrace)
	return timeline.DateOf(cutoff)
}

// Deadline computes the reminder deadline for a state entered at the given
// instant.
func (c Config) Deadline(enteredAt time.Time) time.Time {
	return enteredAt.Add(c.MaxDwell)
}
