/*
scenarios_test.go - Specification Tests for the Demo Scenarios

PURPOSE:
	Tests that each loadable scenario drives its document sequence to the
	advertised end state: settled periods for the happy path, two settled
	periods for the multi-employer case, a re-settled revision and a
	rejected period. The scenarios double as end-to-end coverage of the
	full engine behind the real HTTP surface.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/warp/benefit-engine/benefit"
)

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	if rec.Code != http.StatusOK {
		t.Fatalf("Loading %s failed with %d: %s", id, rec.Code, rec.Body.String())
	}
}

func personPeriods(t *testing.T, router http.Handler, personID string) []PeriodSummaryDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodGet, "/api/persons/"+personID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Loading person %s failed with %d", personID, rec.Code)
	}
	return decodeBody[PersonDTO](t, rec).Periods
}

func TestListScenarios(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	list := decodeBody[[]ScenarioDTO](t, rec)
	if len(list) != 4 {
		t.Fatalf("Expected 4 scenarios, got %d", len(list))
	}
}

func TestLoadUnknownScenario(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "parental-leave"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHappyPathScenario(t *testing.T) {
	// GIVEN: The happy path scenario
	router, _ := newTestAPI(t)
	loadScenario(t, router, "happy-path")

	// THEN: Anna's one period is settled
	periods := personPeriods(t, router, "anna")
	if len(periods) != 1 {
		t.Fatalf("Expected 1 period, got %d", len(periods))
	}
	p := periods[0]
	if p.State != string(benefit.StateSettled) {
		t.Fatalf("Expected settled, got %q", p.State)
	}
	if p.Settlements != 1 {
		t.Errorf("Expected 1 settlement, got %d", p.Settlements)
	}
	if p.TriggerDate != "2022-01-03" {
		t.Errorf("Expected trigger 2022-01-03, got %s", p.TriggerDate)
	}

	// AND: The detail carries the computed payment
	rec := doJSON(t, router, http.MethodGet, "/api/persons/anna/periods/"+p.ID, nil)
	detail := decodeBody[PeriodDetailDTO](t, rec)
	if detail.DailyIncome != "2400" {
		t.Errorf("Expected daily income 2400, got %q", detail.DailyIncome)
	}
	if len(detail.Settled) != 1 {
		t.Fatalf("Expected 1 settlement in detail, got %d", len(detail.Settled))
	}
	if got := detail.Settled[0].Timeline.ConsumedDays; got != 6 {
		t.Errorf("Expected 6 consumed days, got %d", got)
	}

	// AND: The scenario is reported as current
	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
	current := decodeBody[ScenarioDTO](t, rec)
	if current.ID != "happy-path" {
		t.Errorf("Expected current scenario happy-path, got %q", current.ID)
	}
}

func TestMultiEmployerScenario(t *testing.T) {
	// GIVEN: The two-employer scenario
	router, _ := newTestAPI(t)
	loadScenario(t, router, "multi-employer")

	// THEN: Both periods settle and carry the sibling flag
	periods := personPeriods(t, router, "birger")
	if len(periods) != 2 {
		t.Fatalf("Expected 2 periods, got %d", len(periods))
	}
	employers := map[string]bool{}
	for _, p := range periods {
		employers[p.Employer] = true
		if p.State != string(benefit.StateSettled) {
			t.Errorf("Expected %s period settled, got %q", p.Employer, p.State)
		}
		if !p.MultiEmployer {
			t.Errorf("Expected %s period flagged multi-employer", p.Employer)
		}
	}
	if !employers["acme"] || !employers["globex"] {
		t.Errorf("Expected acme and globex, got %v", employers)
	}
}

func TestRevisionScenario(t *testing.T) {
	// GIVEN: The revision scenario
	router, _ := newTestAPI(t)
	loadScenario(t, router, "revision")

	// THEN: The period is settled again after the recalculation
	periods := personPeriods(t, router, "anna")
	if len(periods) != 1 {
		t.Fatalf("Expected 1 period, got %d", len(periods))
	}
	if periods[0].State != string(benefit.StateSettled) {
		t.Fatalf("Expected settled after revision, got %q", periods[0].State)
	}
	if periods[0].Settlements != 2 {
		t.Errorf("Expected 2 settlements, got %d", periods[0].Settlements)
	}

	// AND: The second settlement carries the truncated payment diff
	rec := doJSON(t, router, http.MethodGet, "/api/persons/anna/periods/"+periods[0].ID, nil)
	detail := decodeBody[PeriodDetailDTO](t, rec)
	if len(detail.Settled) != 2 {
		t.Fatalf("Expected 2 settlements in detail, got %d", len(detail.Settled))
	}
	revised := detail.Settled[1]
	if len(revised.PersonOrder.Changes()) == 0 {
		t.Error("Expected the revision to change payment lines")
	}
	if detail.MaximumDate == "" {
		t.Error("Expected a maximum date once the ceiling is reached")
	}
}

func TestRejectionScenario(t *testing.T) {
	router, _ := newTestAPI(t)
	loadScenario(t, router, "rejection")

	periods := personPeriods(t, router, "carla")
	if len(periods) != 1 {
		t.Fatalf("Expected 1 period, got %d", len(periods))
	}
	if periods[0].State != string(benefit.StateRejected) {
		t.Fatalf("Expected rejected, got %q", periods[0].State)
	}
}

func TestLoadScenarioReplacesPreviousData(t *testing.T) {
	// GIVEN: The happy path is loaded
	router, _ := newTestAPI(t)
	loadScenario(t, router, "happy-path")

	// WHEN: A different scenario is loaded on top
	loadScenario(t, router, "rejection")

	// THEN: Only the new scenario's data remains
	rec := doJSON(t, router, http.MethodGet, "/api/persons", nil)
	ids := decodeBody[[]string](t, rec)
	if len(ids) != 1 || ids[0] != "carla" {
		t.Fatalf("Expected [carla], got %v", ids)
	}
}

func TestResetClearsDatabase(t *testing.T) {
	// GIVEN: A loaded scenario
	router, _ := newTestAPI(t)
	loadScenario(t, router, "happy-path")

	// WHEN: The database is reset
	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Reset failed with %d", rec.Code)
	}

	// THEN: No persons remain and no scenario is current
	rec = doJSON(t, router, http.MethodGet, "/api/persons", nil)
	ids := decodeBody[[]string](t, rec)
	if len(ids) != 0 {
		t.Fatalf("Expected no persons after reset, got %v", ids)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
	if body := rec.Body.String(); body != "null\n" && body != "null" {
		t.Errorf("Expected null current scenario, got %q", body)
	}
}
