/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario feeds a document sequence
	through the engine exactly the way the outside world would.

AVAILABLE SCENARIOS:

	happy-path:     One employer, full flow from sick-note to settled
	multi-employer: Two employers sick in the same window, settled in order
	revision:       A settled period reopened by corrected history
	rejection:      Eligibility check fails, period rejected

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Build the document sequence with deterministic receive times
 3. Process each document through the engine service
 4. Later documents look up period ids from the stored aggregate

NOTE:

	Document receive times sit just after the sickness window. The time
	bar is computed from receipt, so back-dating keeps the demo days
	payable.

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: writeJSON/writeError helpers
  - document/documents.go: The document payloads
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/document"
	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "happy-path",
		Name:        "Happy Path",
		Description: "One employer, sick 3-26 Jan 2022, full flow to settled",
	},
	{
		ID:          "multi-employer",
		Name:        "Two Employers",
		Description: "Overlapping sickness at two employers, settled in deadline order",
	},
	{
		ID:          "revision",
		Name:        "Revision",
		Description: "Settled period reopened by corrected benefit history",
	},
	{
		ID:          "rejection",
		Name:        "Rejection",
		Description: "Eligibility check fails and the period is rejected",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "happy-path":
		err = h.loadHappyPathScenario(ctx)
	case "multi-employer":
		err = h.loadMultiEmployerScenario(ctx)
	case "revision":
		err = h.loadRevisionScenario(ctx)
	case "rejection":
		err = h.loadRejectionScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO BUILDING BLOCKS
// =============================================================================

// feeder sends documents for one person with strictly increasing receive
// times, so merge tie-breaks are deterministic across reloads.
type feeder struct {
	h        *Handler
	personID string
	clock    time.Time
}

func (h *Handler) feederFor(personID string, start time.Time) *feeder {
	return &feeder{h: h, personID: personID, clock: start}
}

func (f *feeder) base() document.Base {
	f.clock = f.clock.Add(time.Minute)
	return document.Base{ID: uuid.NewString(), PersonID: f.personID, Received: f.clock}
}

func (f *feeder) send(ctx context.Context, doc benefit.Document) error {
	return f.h.Service.Process(ctx, f.personID, doc)
}

// periodFor finds the person's period at the given employer.
func (f *feeder) periodFor(ctx context.Context, employer string) (uuid.UUID, error) {
	person, err := f.h.Service.Person(ctx, f.personID)
	if err != nil {
		return uuid.Nil, err
	}
	for _, p := range person.Periods {
		if p.Employer == employer {
			return p.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("no period for employer %s", employer)
}

// sendIntake runs the sick-note, application and income-report triple.
func (f *feeder) sendIntake(ctx context.Context, employer string, span timeline.Period, monthly int64) error {
	sickNote := &document.SickNote{
		Base:     f.base(),
		Employer: employer,
		Periods:  []document.GradedPeriod{{Span: span, Grade: decimal.NewFromInt(100)}},
	}
	if err := f.send(ctx, sickNote); err != nil {
		return err
	}

	application := &document.Application{
		Base:     f.base(),
		Employer: employer,
		Span:     span,
	}
	if err := f.send(ctx, application); err != nil {
		return err
	}

	incomeReport := &document.IncomeReport{
		Base:          f.base(),
		Employer:      employer,
		FirstAbsence:  span.Start,
		MonthlyIncome: decimal.NewFromInt(monthly),
		Refund:        false,
	}
	return f.send(ctx, incomeReport)
}

// sendEligibility answers the eligibility request positively.
func (f *feeder) sendEligibility(ctx context.Context, trigger timeline.Date) error {
	return f.send(ctx, &document.EligibilityBasis{
		Base:       f.base(),
		Trigger:    trigger,
		IsEligible: true,
	})
}

// sendHistory answers the history request.
func (f *feeder) sendHistory(ctx context.Context, consumed int) error {
	return f.send(ctx, &document.OtherBenefitHistory{
		Base:         f.base(),
		ConsumedDays: consumed,
	})
}

// sendApprovalFlow drives one period from awaiting-simulation to settled.
func (f *feeder) sendApprovalFlow(ctx context.Context, periodID uuid.UUID) error {
	steps := []benefit.Document{
		&document.SimulationResult{Base: f.base(), PeriodID: periodID, OK: true},
		&document.PaymentApproval{Base: f.base(), PeriodID: periodID, Approved: true, Automatic: true},
		&document.PaymentOutcome{Base: f.base(), PeriodID: periodID, Accepted: true, Detail: "received"},
		&document.PaymentOutcome{Base: f.base(), PeriodID: periodID, Accepted: true},
	}
	for _, doc := range steps {
		if err := f.send(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadHappyPathScenario(ctx context.Context) error {
	span := timeline.MustPeriod(timeline.NewDate(2022, 1, 3), timeline.NewDate(2022, 1, 26))
	f := h.feederFor("anna", time.Date(2022, 1, 27, 8, 0, 0, 0, time.UTC))

	if err := f.sendIntake(ctx, "acme", span, 52_000); err != nil {
		return err
	}
	if err := f.sendEligibility(ctx, span.Start); err != nil {
		return err
	}
	if err := f.sendHistory(ctx, 0); err != nil {
		return err
	}

	periodID, err := f.periodFor(ctx, "acme")
	if err != nil {
		return err
	}
	return f.sendApprovalFlow(ctx, periodID)
}

func (h *Handler) loadMultiEmployerScenario(ctx context.Context) error {
	span := timeline.MustPeriod(timeline.NewDate(2022, 2, 1), timeline.NewDate(2022, 2, 25))
	f := h.feederFor("birger", time.Date(2022, 2, 26, 8, 0, 0, 0, time.UTC))

	for _, employer := range []string{"acme", "globex"} {
		if err := f.sendIntake(ctx, employer, span, 40_000); err != nil {
			return err
		}
	}
	// One eligibility answer and one history answer cover both periods:
	// documents route to every period that accepts them.
	if err := f.sendEligibility(ctx, span.Start); err != nil {
		return err
	}
	if err := f.sendHistory(ctx, 0); err != nil {
		return err
	}

	for _, employer := range []string{"acme", "globex"} {
		periodID, err := f.periodFor(ctx, employer)
		if err != nil {
			return err
		}
		if err := f.sendApprovalFlow(ctx, periodID); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadRevisionScenario(ctx context.Context) error {
	if err := h.loadHappyPathScenario(ctx); err != nil {
		return err
	}

	f := h.feederFor("anna", time.Date(2022, 3, 1, 8, 0, 0, 0, time.UTC))
	revision := &document.Revision{
		Base:           f.base(),
		RevisionReason: "corrected benefit history from a parallel case",
		Trigger:        timeline.NewDate(2022, 1, 3),
	}
	if err := f.send(ctx, revision); err != nil {
		return err
	}

	// The corrected history leaves only three payable days before the
	// ceiling, so the recalculation truncates the settled payment and the
	// diff carries changed lines.
	if err := f.sendHistory(ctx, 245); err != nil {
		return err
	}

	periodID, err := f.periodFor(ctx, "acme")
	if err != nil {
		return err
	}
	approval := &document.PaymentApproval{Base: f.base(), PeriodID: periodID, Approved: true, Automatic: true}
	if err := f.send(ctx, approval); err != nil {
		return err
	}
	outcome := &document.PaymentOutcome{Base: f.base(), PeriodID: periodID, Accepted: true}
	return f.send(ctx, outcome)
}

func (h *Handler) loadRejectionScenario(ctx context.Context) error {
	span := timeline.MustPeriod(timeline.NewDate(2022, 4, 4), timeline.NewDate(2022, 4, 29))
	f := h.feederFor("carla", time.Date(2022, 4, 30, 8, 0, 0, 0, time.UTC))

	if err := f.sendIntake(ctx, "initech", span, 45_000); err != nil {
		return err
	}
	return f.send(ctx, &document.EligibilityBasis{
		Base:            f.base(),
		Trigger:         span.Start,
		IsEligible:      false,
		RejectionReason: "not employed long enough before the sickness",
	})
}
