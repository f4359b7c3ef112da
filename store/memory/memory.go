/*
Package memory provides an in-memory implementation of benefit.Store.

PURPOSE:
  Persistence for tests, demos and single-process deployments without a
  database. Save records the person's visitor traversal as a replayable
  snapshot; Load replays it into a fresh Builder, so the store never hands
  out aliases into a live aggregate.

SEE ALSO:
  - benefit/visitor.go: the traversal contract snapshots are built from
  - store/sqlite: the durable counterpart
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// Store holds person snapshots keyed by person id.
type Store struct {
	cfg       benefit.Config
	observers benefit.Observers
	needs     benefit.DataRequester

	mu        sync.RWMutex
	snapshots map[string]*snapshot
}

var _ benefit.Store = (*Store)(nil)

// New creates an empty in-memory store. Loaded persons are wired to the
// given config, observers and data requester.
func New(cfg benefit.Config, observers benefit.Observers, needs benefit.DataRequester) *Store {
	if observers == nil {
		observers = benefit.NopObservers{}
	}
	if needs == nil {
		needs = benefit.NopRequester{}
	}
	return &Store{
		cfg:       cfg,
		observers: observers,
		needs:     needs,
		snapshots: make(map[string]*snapshot),
	}
}

// Save captures the person's full traversal, replacing any earlier snapshot.
func (s *Store) Save(_ context.Context, person *benefit.Person) error {
	snap := &snapshot{}
	person.Accept(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[person.ID] = snap
	return nil
}

// Load replays the stored traversal into a new aggregate.
func (s *Store) Load(_ context.Context, personID string) (*benefit.Person, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[personID]
	s.mu.RUnlock()
	if !ok {
		return nil, benefit.ErrPersonNotFound
	}

	b := benefit.NewBuilder(s.cfg, s.observers, s.needs)
	snap.replay(b)
	return b.Build(), nil
}

// ListPersons returns every saved person id in stable order.
func (s *Store) ListPersons(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// =============================================================================
// SNAPSHOT - Recorded traversal
// =============================================================================

// snapshot records visitor events so they can be replayed any number of
// times. Day and period values are copied by the visitor contract; the
// settlement pointer is shallow-copied since settlements are immutable
// once produced.
type snapshot struct {
	events []func(benefit.Visitor)
}

var _ benefit.Visitor = (*snapshot)(nil)

func (sn *snapshot) replay(v benefit.Visitor) {
	for _, ev := range sn.events {
		ev(v)
	}
}

func (sn *snapshot) VisitPerson(personID string) {
	sn.events = append(sn.events, func(v benefit.Visitor) { v.VisitPerson(personID) })
}

func (sn *snapshot) VisitPeriod(meta benefit.PeriodMeta) {
	sn.events = append(sn.events, func(v benefit.Visitor) { v.VisitPeriod(meta) })
}

func (sn *snapshot) VisitTimelineDay(periodID uuid.UUID, date timeline.Date, entry timeline.Entry) {
	sn.events = append(sn.events, func(v benefit.Visitor) { v.VisitTimelineDay(periodID, date, entry) })
}

func (sn *snapshot) VisitLockedPeriod(periodID uuid.UUID, locked timeline.Period) {
	sn.events = append(sn.events, func(v benefit.Visitor) { v.VisitLockedPeriod(periodID, locked) })
}

func (sn *snapshot) VisitSettlement(periodID uuid.UUID, st *settlement.Settlement) {
	copied := *st
	sn.events = append(sn.events, func(v benefit.Visitor) { v.VisitSettlement(periodID, &copied) })
}

func (sn *snapshot) VisitNeed(periodID uuid.UUID, kind benefit.NeedKind) {
	sn.events = append(sn.events, func(v benefit.Visitor) { v.VisitNeed(periodID, kind) })
}

func (sn *snapshot) VisitLogEntry(periodID uuid.UUID, entry benefit.LogEntry) {
	sn.events = append(sn.events, func(v benefit.Visitor) { v.VisitLogEntry(periodID, entry) })
}
