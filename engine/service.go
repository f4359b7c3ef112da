/*
Package engine coordinates document processing against the person aggregate.

PURPOSE:
  Connects the outside world (API, schedulers, demo scenarios) to the
  benefit state machine. The package owns the load/handle/save cycle and
  serializes document processing per person so two documents for the same
  person never interleave.

KEY CONCEPTS:
  - Service: synchronous load -> HandleDocument -> save, with striped
    per-person locks. One document in, the whole aggregate is reloaded,
    mutated and written back.
  - Dispatcher: asynchronous front for the Service. Documents for the
    same person always land on the same worker queue, so per-person
    ordering is preserved while different persons process in parallel.

USAGE:
  svc := engine.NewService(store, cfg, observers, needs)
  err := svc.Process(ctx, "person-1", doc)

  disp := engine.NewDispatcher(svc, 4)
  disp.Start(ctx)
  disp.Submit(ctx, "person-1", doc)
  disp.Stop()

SEE ALSO:
  - benefit/person.go: document routing inside the aggregate
  - benefit/store.go: persistence contract
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"

	"github.com/warp/benefit-engine/benefit"
)

// =============================================================================
// SERVICE
// =============================================================================

// lockStripes bounds lock memory for arbitrarily many persons. Two persons
// hashing to the same stripe serialize needlessly, which is safe.
const lockStripes = 64

// Service processes documents one at a time per person: load the aggregate,
// hand the document to the state machine, save the result.
type Service struct {
	store     benefit.Store
	cfg       benefit.Config
	observers benefit.Observers
	needs     benefit.DataRequester

	locks [lockStripes]sync.Mutex
}

// NewService creates a document processing service on top of the given store.
func NewService(store benefit.Store, cfg benefit.Config, observers benefit.Observers, needs benefit.DataRequester) *Service {
	if observers == nil {
		observers = benefit.NopObservers{}
	}
	if needs == nil {
		needs = benefit.NopRequester{}
	}
	return &Service{store: store, cfg: cfg, observers: observers, needs: needs}
}

// Process routes one document to a person's aggregate and persists the
// outcome. Persons unknown to the store are created on first document.
//
// A functional rejection is not an error at this level: the aggregate has
// recorded the rejection and the new state is saved. Only infrastructure
// failures and logical inconsistencies surface to the caller.
func (s *Service) Process(ctx context.Context, personID string, doc benefit.Document) error {
	if personID == "" {
		return fmt.Errorf("process document %s: empty person id", doc.DocumentID())
	}

	mu := s.lockFor(personID)
	mu.Lock()
	defer mu.Unlock()

	person, err := s.store.Load(ctx, personID)
	switch {
	case errors.Is(err, benefit.ErrPersonNotFound):
		person = benefit.NewPerson(personID, s.cfg, s.observers, s.needs)
	case err != nil:
		return fmt.Errorf("load person %s: %w", personID, err)
	}

	handleErr := person.HandleDocument(doc)
	if handleErr != nil && !benefit.IsFunctional(handleErr) && !benefit.IsInconsistency(handleErr) {
		// Routing failures and the like: nothing was mutated, do not save.
		return fmt.Errorf("handle document %s for person %s: %w", doc.DocumentID(), personID, handleErr)
	}

	if err := s.store.Save(ctx, person); err != nil {
		return fmt.Errorf("save person %s: %w", personID, err)
	}

	if handleErr != nil {
		log.Printf("[Engine] Document %s for person %s handled with: %v", doc.DocumentID(), personID, handleErr)
	}
	return nil
}

// Person loads a person's aggregate for read-only inspection.
func (s *Service) Person(ctx context.Context, personID string) (*benefit.Person, error) {
	mu := s.lockFor(personID)
	mu.Lock()
	defer mu.Unlock()
	return s.store.Load(ctx, personID)
}

// Persons lists every person id known to the store.
func (s *Service) Persons(ctx context.Context) ([]string, error) {
	return s.store.ListPersons(ctx)
}

func (s *Service) lockFor(personID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(personID))
	return &s.locks[h.Sum32()%lockStripes]
}
