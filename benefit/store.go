package benefit

import "context"

// =============================================================================
// STORE - Persistence interface for person aggregates
// =============================================================================

// Store persists person aggregates through the visitor traversal. The
// engine treats persistence as a collaborator: Save after each handled
// document, Load before the next.
//
// Implementations:
//   - store/sqlite: production SQLite
//   - store/memory: in-memory, for tests and demos
type Store interface {
	// Save writes the person's full aggregate, replacing what was there.
	Save(ctx context.Context, person *Person) error

	// Load reconstructs a person. Returns ErrPersonNotFound when the person
	// has never been saved.
	Load(ctx context.Context, personID string) (*Person, error)

	// ListPersons returns every known person id.
	ListPersons(ctx context.Context) ([]string, error)
}
