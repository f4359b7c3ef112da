/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

DOCUMENT ENVELOPE:
  Documents arrive as a discriminated envelope:

    {
      "type": "sick_note",
      "person_id": "person-1",
      "document": { ...concrete payload... }
    }

  The "type" field selects the concrete document struct; the payload is
  decoded directly into it. Missing document ids and received timestamps
  are filled in server-side.

VALIDATION:
  Validation is done in handlers and in the documents themselves, not in
  DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - document/documents.go: Concrete document payloads
*/
package api

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/document"
	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// DOCUMENT ENVELOPE
// =============================================================================

// DocumentEnvelope is the generic intake shape for every document kind.
type DocumentEnvelope struct {
	Type     string          `json:"type"`
	PersonID string          `json:"person_id"`
	Document json.RawMessage `json:"document"`
}

// decodeDocument turns an envelope into the concrete document it names.
func decodeDocument(env DocumentEnvelope) (benefit.Document, error) {
	var doc benefit.Document
	var base *document.Base

	switch timeline.SourceKind(env.Type) {
	case timeline.KindSickNote:
		d := &document.SickNote{}
		doc, base = d, &d.Base
	case timeline.KindApplication:
		d := &document.Application{}
		doc, base = d, &d.Base
	case timeline.KindIncomeReport:
		d := &document.IncomeReport{}
		doc, base = d, &d.Base
	case timeline.KindEligibilityBasis:
		d := &document.EligibilityBasis{}
		doc, base = d, &d.Base
	case timeline.KindOtherBenefitHistory:
		d := &document.OtherBenefitHistory{}
		doc, base = d, &d.Base
	case timeline.KindSimulationResult:
		d := &document.SimulationResult{}
		doc, base = d, &d.Base
	case timeline.KindPaymentApproval:
		d := &document.PaymentApproval{}
		doc, base = d, &d.Base
	case timeline.KindPaymentOutcome:
		d := &document.PaymentOutcome{}
		doc, base = d, &d.Base
	case timeline.KindManualOverride:
		d := &document.ManualOverride{}
		doc, base = d, &d.Base
	case timeline.KindRevision:
		d := &document.Revision{}
		doc, base = d, &d.Base
	case timeline.KindReminder:
		d := &document.Reminder{}
		doc, base = d, &d.Base
	default:
		return nil, fmt.Errorf("unknown document type %q", env.Type)
	}

	if len(env.Document) > 0 {
		if err := json.Unmarshal(env.Document, doc); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
		}
	}

	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	if base.Received.IsZero() {
		base.Received = time.Now().UTC()
	}
	base.PersonID = env.PersonID

	return doc, nil
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AcceptedResponse acknowledges a processed document.
type AcceptedResponse struct {
	Status     string `json:"status"`
	PersonID   string `json:"person_id"`
	DocumentID string `json:"document_id"`
}

// ErrorResponse is the uniform error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// PersonDTO is one person with all their benefit periods.
type PersonDTO struct {
	ID      string             `json:"id"`
	Periods []PeriodSummaryDTO `json:"periods"`
}

// PeriodSummaryDTO is the scalar view of one benefit period.
type PeriodSummaryDTO struct {
	ID            string   `json:"id"`
	Employer      string   `json:"employer"`
	State         string   `json:"state"`
	Phase         string   `json:"phase"`
	Start         string   `json:"start,omitempty"`
	End           string   `json:"end,omitempty"`
	TriggerDate   string   `json:"trigger_date,omitempty"`
	MultiEmployer bool     `json:"multi_employer,omitempty"`
	Settlements   int      `json:"settlements"`
	Outstanding   []string `json:"outstanding,omitempty"`
}

// PeriodDetailDTO adds the timeline, settlements and log.
type PeriodDetailDTO struct {
	PeriodSummaryDTO
	DailyIncome string                   `json:"daily_income,omitempty"`
	MaximumDate string                   `json:"maximum_date,omitempty"`
	Timeline    []TimelineDayDTO         `json:"timeline"`
	Settled     []*settlement.Settlement `json:"settlements_detail,omitempty"`
	Log         []LogEntryDTO            `json:"log,omitempty"`
}

// TimelineDayDTO is one classified day with its winning source.
type TimelineDayDTO struct {
	Date           string `json:"date"`
	Kind           string `json:"kind"`
	Grade          string `json:"grade,omitempty"`
	Benefit        string `json:"benefit,omitempty"`
	Reason         string `json:"reason,omitempty"`
	SourceKind     string `json:"source_kind"`
	SourceDocument string `json:"source_document"`
}

// LogEntryDTO is one period event log line.
type LogEntryDTO struct {
	Level      string `json:"level"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id,omitempty"`
	At         string `json:"at"`
}

// StateCountsDTO is the admin overview of periods per state.
type StateCountsDTO struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toPersonDTO(person *benefit.Person) PersonDTO {
	out := PersonDTO{ID: person.ID, Periods: []PeriodSummaryDTO{}}
	for _, p := range person.Periods {
		out.Periods = append(out.Periods, toPeriodSummaryDTO(p))
	}
	return out
}

func toPeriodSummaryDTO(p *benefit.BenefitPeriod) PeriodSummaryDTO {
	dto := PeriodSummaryDTO{
		ID:            p.ID.String(),
		Employer:      p.Employer,
		State:         string(p.State),
		Phase:         string(p.State.Phase()),
		MultiEmployer: p.MultiEmployer,
		Settlements:   len(p.Settlements),
	}
	if !p.Computed.Start.IsZero() {
		dto.Start = p.Computed.Start.String()
		dto.End = p.Computed.End.String()
	}
	if !p.TriggerDate.IsZero() {
		dto.TriggerDate = p.TriggerDate.String()
	}
	for _, kind := range p.OutstandingNeeds() {
		dto.Outstanding = append(dto.Outstanding, string(kind))
	}
	return dto
}

func toPeriodDetailDTO(p *benefit.BenefitPeriod) PeriodDetailDTO {
	dto := PeriodDetailDTO{
		PeriodSummaryDTO: toPeriodSummaryDTO(p),
		Timeline:         []TimelineDayDTO{},
		Settled:          p.Settlements,
	}
	if !p.DailyIncome.IsZero() {
		dto.DailyIncome = p.DailyIncome.String()
	}
	if last := p.LastSettlement(); last != nil && last.Timeline.MaximumDate != nil {
		dto.MaximumDate = last.Timeline.MaximumDate.String()
	}
	for _, d := range p.Timeline.Days() {
		entry, _ := p.Timeline.At(d)
		day := TimelineDayDTO{
			Date:           d.String(),
			Kind:           string(entry.Day.Kind),
			Benefit:        entry.Day.Benefit,
			Reason:         entry.Day.Reason,
			SourceKind:     string(entry.Source.Kind),
			SourceDocument: entry.Source.DocumentID,
		}
		if !entry.Day.Grade.IsZero() {
			day.Grade = entry.Day.Grade.String()
		}
		dto.Timeline = append(dto.Timeline, day)
	}
	for _, entry := range p.Log {
		dto.Log = append(dto.Log, LogEntryDTO{
			Level:      string(entry.Level),
			Message:    entry.Message,
			DocumentID: entry.DocumentID,
			At:         entry.At.Format(time.RFC3339),
		})
	}
	return dto
}
