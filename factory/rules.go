/*
Package factory provides JSON to Go rule conversion.

PURPOSE:
  Converts JSON rule definitions into benefit.Config objects. This enables
  rule configuration without code changes - case workers and ops can adjust
  statutory parameters and document ranking in JSON, and the factory creates
  the proper Go structs.

WHY JSON?
  - Non-developers can tune parameters
  - Easy integration with admin UI
  - Version control for rule definitions
  - Database storage of rule configs

JSON SCHEMA:
  {
    "id": "rules-2022",
    "name": "Statutory rules 2022",
    "employer_period_days": 16,
    "continuation_window_days": 16,
    "ceiling_days": 248,
    "time_bar_years": 3,
    "waiting_days": 0,
    "max_dwell_days": 30,
    "ranking": {
      "manual_override": 90,
      "application": 70,
      "income_report": 60
    }
  }

KEY FEATURES:
  - Validates JSON structure
  - Sets sensible defaults (omitted fields fall back to DefaultConfig)
  - Ranking entries merge over the default ranking table
  - Round-trips back to JSON for storage

USAGE:
  factory := NewRuleFactory()

  // From JSON string
  cfg, err := factory.ParseRules(jsonString)

  // Back to JSON for storage
  rj := factory.ToJSON("rules-2022", "Statutory rules 2022", cfg)

SEE ALSO:
  - benefit/config.go: Config type definition
  - settlement/types.go: Rules type definition
  - timeline/source.go: document kind vocabulary and default ranking
*/
package factory

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesJSON is the JSON representation of an engine rule set.
type RulesJSON struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	EmployerPeriodDays     *int           `json:"employer_period_days,omitempty"`
	ContinuationWindowDays *int           `json:"continuation_window_days,omitempty"`
	CeilingDays            *int           `json:"ceiling_days,omitempty"`
	TimeBarYears           *int           `json:"time_bar_years,omitempty"`
	WaitingDays            *int           `json:"waiting_days,omitempty"`
	MaxDwellDays           *int           `json:"max_dwell_days,omitempty"`
	Ranking                map[string]int `json:"ranking,omitempty"`
}

// knownKinds is the set of document kinds a ranking entry may name.
var knownKinds = map[string]timeline.SourceKind{
	string(timeline.KindSickNote):            timeline.KindSickNote,
	string(timeline.KindApplication):         timeline.KindApplication,
	string(timeline.KindIncomeReport):        timeline.KindIncomeReport,
	string(timeline.KindEligibilityBasis):    timeline.KindEligibilityBasis,
	string(timeline.KindOtherBenefitHistory): timeline.KindOtherBenefitHistory,
	string(timeline.KindManualOverride):      timeline.KindManualOverride,
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rule sets to benefit.Config.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRules parses a JSON string into a benefit.Config.
func (f *RuleFactory) ParseRules(jsonStr string) (benefit.Config, error) {
	var rj RulesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return benefit.Config{}, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RulesJSON to a benefit.Config. Omitted fields keep
// the values from benefit.DefaultConfig.
func (f *RuleFactory) FromJSON(rj RulesJSON) (benefit.Config, error) {
	cfg := benefit.DefaultConfig()

	if err := applyInt(&cfg.Settlement.EmployerPeriodDays, rj.EmployerPeriodDays, "employer_period_days"); err != nil {
		return benefit.Config{}, err
	}
	if err := applyInt(&cfg.Settlement.ContinuationWindowDays, rj.ContinuationWindowDays, "continuation_window_days"); err != nil {
		return benefit.Config{}, err
	}
	if err := applyInt(&cfg.Settlement.CeilingDays, rj.CeilingDays, "ceiling_days"); err != nil {
		return benefit.Config{}, err
	}
	if err := applyInt(&cfg.Settlement.TimeBarYears, rj.TimeBarYears, "time_bar_years"); err != nil {
		return benefit.Config{}, err
	}
	if rj.WaitingDays != nil {
		if *rj.WaitingDays < 0 {
			return benefit.Config{}, fmt.Errorf("waiting_days must not be negative, got %d", *rj.WaitingDays)
		}
		cfg.Settlement.WaitingDays = *rj.WaitingDays
	}
	if rj.MaxDwellDays != nil {
		if *rj.MaxDwellDays <= 0 {
			return benefit.Config{}, fmt.Errorf("max_dwell_days must be positive, got %d", *rj.MaxDwellDays)
		}
		cfg.MaxDwell = time.Duration(*rj.MaxDwellDays) * 24 * time.Hour
	}

	// Ranking entries merge over the defaults so a config can bump a
	// single kind without restating the whole table.
	if len(rj.Ranking) > 0 {
		merged := make(timeline.Ranking, len(cfg.Ranking))
		for k, v := range cfg.Ranking {
			merged[k] = v
		}
		for name, prio := range rj.Ranking {
			kind, ok := knownKinds[name]
			if !ok {
				return benefit.Config{}, fmt.Errorf("unknown document kind in ranking: %q", name)
			}
			if prio < 0 {
				return benefit.Config{}, fmt.Errorf("ranking for %q must not be negative, got %d", name, prio)
			}
			merged[kind] = prio
		}
		cfg.Ranking = merged
	}

	return cfg, nil
}

// ToJSON converts a benefit.Config back to RulesJSON.
func (f *RuleFactory) ToJSON(id, name string, cfg benefit.Config) RulesJSON {
	rj := RulesJSON{
		ID:                     id,
		Name:                   name,
		EmployerPeriodDays:     intPtr(cfg.Settlement.EmployerPeriodDays),
		ContinuationWindowDays: intPtr(cfg.Settlement.ContinuationWindowDays),
		CeilingDays:            intPtr(cfg.Settlement.CeilingDays),
		TimeBarYears:           intPtr(cfg.Settlement.TimeBarYears),
		WaitingDays:            intPtr(cfg.Settlement.WaitingDays),
	}
	dwellDays := int(cfg.MaxDwell / (24 * time.Hour))
	rj.MaxDwellDays = &dwellDays

	if len(cfg.Ranking) > 0 {
		rj.Ranking = make(map[string]int, len(cfg.Ranking))
		for kind, prio := range cfg.Ranking {
			rj.Ranking[string(kind)] = prio
		}
	}

	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func applyInt(dst *int, src *int, field string) error {
	if src == nil {
		return nil
	}
	if *src <= 0 {
		return fmt.Errorf("%s must be positive, got %d", field, *src)
	}
	*dst = *src
	return nil
}

func intPtr(v int) *int {
	return &v
}

// =============================================================================
// PRESET RULE SETS
// =============================================================================

// StatutoryRulesJSON returns the statutory rule set as a JSON string:
// a 16 day employer period, 16 day continuation window, 248 day ceiling
// and a 3 year time bar.
func StatutoryRulesJSON(id, name string) string {
	rj := RulesJSON{ID: id, Name: name}
	rj.EmployerPeriodDays = intPtr(settlement.DefaultRules().EmployerPeriodDays)
	rj.ContinuationWindowDays = intPtr(settlement.DefaultRules().ContinuationWindowDays)
	rj.CeilingDays = intPtr(settlement.DefaultRules().CeilingDays)
	rj.TimeBarYears = intPtr(settlement.DefaultRules().TimeBarYears)
	data, _ := json.Marshal(rj)
	return string(data)
}
