/*
handlers.go - HTTP API handlers for the benefit period engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the engine service.

ENDPOINTS:
  Documents:
    POST   /api/documents                     Submit a document (sync)
    POST   /api/documents?async=true          Submit through the dispatcher

  Persons:
    GET    /api/persons                       List person ids
    GET    /api/persons/{id}                  Person with period summaries
    GET    /api/persons/{id}/periods/{pid}    Full period detail

  Admin:
    GET    /api/admin/states                  Period count per state

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario
    POST   /api/scenarios/reset               Reset the database

REQUEST FLOW:
  1. Parse HTTP request
  2. Decode the document envelope into its concrete document
  3. Hand the document to the engine service
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Person or period not found
  - 409: Document the current state cannot accept
  - 500: Internal errors

  A functional rejection is NOT an HTTP error: the engine has recorded
  it and moved the period to its rejected state, so the document was
  processed successfully from the transport's point of view.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/engine"
	"github.com/warp/benefit-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service    *engine.Service
	Dispatcher *engine.Dispatcher
	Store      *sqlite.Store

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler. The dispatcher is optional; without it
// async submission falls back to synchronous processing.
func NewHandler(svc *engine.Service, disp *engine.Dispatcher, store *sqlite.Store) *Handler {
	return &Handler{Service: svc, Dispatcher: disp, Store: store}
}

// =============================================================================
// DOCUMENT INTAKE
// =============================================================================

// SubmitDocument accepts one document envelope and routes it to the engine.
// POST /api/documents
func (h *Handler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	var env DocumentEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid document envelope", err)
		return
	}
	if env.PersonID == "" {
		writeError(w, http.StatusBadRequest, "Missing person_id", nil)
		return
	}

	doc, err := decodeDocument(env)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid document", err)
		return
	}

	if r.URL.Query().Get("async") == "true" && h.Dispatcher != nil {
		if err := h.Dispatcher.Submit(r.Context(), env.PersonID, doc); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Failed to enqueue document", err)
			return
		}
		writeJSON(w, http.StatusAccepted, AcceptedResponse{
			Status: "queued", PersonID: env.PersonID, DocumentID: doc.DocumentID(),
		})
		return
	}

	if err := h.Service.Process(r.Context(), env.PersonID, doc); err != nil {
		switch {
		case errors.Is(err, benefit.ErrPeriodNotFound):
			writeError(w, http.StatusNotFound, "No benefit period accepts this document", err)
		case errors.Is(err, benefit.ErrUnexpectedDocument):
			writeError(w, http.StatusConflict, "Document not expected in the current state", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to process document", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, AcceptedResponse{
		Status: "processed", PersonID: env.PersonID, DocumentID: doc.DocumentID(),
	})
}

// =============================================================================
// PERSON HANDLERS
// =============================================================================

// ListPersons returns all known person ids.
// GET /api/persons
func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Service.Persons(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list persons", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetPerson returns a person with summaries of every benefit period.
// GET /api/persons/{id}
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	person, err := h.Service.Person(r.Context(), id)
	if errors.Is(err, benefit.ErrPersonNotFound) {
		writeError(w, http.StatusNotFound, "Person not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load person", err)
		return
	}

	writeJSON(w, http.StatusOK, toPersonDTO(person))
}

// GetPeriod returns one benefit period in full.
// GET /api/persons/{id}/periods/{periodID}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "id")
	periodID, err := uuid.Parse(chi.URLParam(r, "periodID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period id", err)
		return
	}

	person, err := h.Service.Person(r.Context(), personID)
	if errors.Is(err, benefit.ErrPersonNotFound) {
		writeError(w, http.StatusNotFound, "Person not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load person", err)
		return
	}

	period := person.PeriodByID(periodID)
	if period == nil {
		writeError(w, http.StatusNotFound, "Benefit period not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toPeriodDetailDTO(period))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetStateCounts returns how many periods sit in each state.
// GET /api/admin/states
func (h *Handler) GetStateCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Store.CountPeriodsByState(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count periods", err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, StateCountsDTO{Counts: counts, Total: total})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
