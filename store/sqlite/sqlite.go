/*
Package sqlite provides a SQLite-backed implementation of benefit.Store.

PURPOSE:
  Durable persistence for person aggregates. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

STORAGE MODEL:
  Save replaces the person's rows wholesale inside one transaction: the
  aggregate is walked through benefit.Visitor and written row by row.
  Load reads the rows back in traversal order and replays them into a
  benefit.Builder. Any store that round-trips the traversal reproduces
  an identical in-memory model, so no table knows about state machine
  internals.

KEY TABLES:
  persons:        One row per aggregate root
  periods:        Scalar state of each benefit period (meta_json blob)
  timeline_days:  One row per day per period
  locked_periods: Frozen date ranges per period
  settlements:    Settlement snapshots (JSON), ordered per period
  needs:          Outstanding data requests per period
  logs:           Period event log, ordered

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/benefit.db", cfg, observers, needs)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - benefit/store.go: Interface definition
  - benefit/visitor.go: Traversal and reconstruction contract
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/settlement"
	"github.com/warp/benefit-engine/timeline"
)

// Store implements benefit.Store using SQLite. Loaded persons are wired to
// the config, observers and data requester the store was created with.
type Store struct {
	db        *sql.DB
	cfg       benefit.Config
	observers benefit.Observers
	needs     benefit.DataRequester
	mu        sync.RWMutex
}

var _ benefit.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, cfg benefit.Config, observers benefit.Observers, needs benefit.DataRequester) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if observers == nil {
		observers = benefit.NopObservers{}
	}
	if needs == nil {
		needs = benefit.NopRequester{}
	}

	store := &Store{db: db, cfg: cfg, observers: observers, needs: needs}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		employer TEXT NOT NULL,
		state TEXT NOT NULL,
		computed_start TEXT,
		computed_end TEXT,
		meta_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_periods_person
		ON periods(person_id, seq);
	CREATE INDEX IF NOT EXISTS idx_periods_state
		ON periods(state);

	CREATE TABLE IF NOT EXISTS timeline_days (
		period_id TEXT NOT NULL,
		date TEXT NOT NULL,
		entry_json TEXT NOT NULL,
		PRIMARY KEY (period_id, date)
	);

	CREATE TABLE IF NOT EXISTS locked_periods (
		period_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		PRIMARY KEY (period_id, seq)
	);

	CREATE TABLE IF NOT EXISTS settlements (
		period_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		settlement_json TEXT NOT NULL,
		PRIMARY KEY (period_id, seq)
	);

	CREATE TABLE IF NOT EXISTS needs (
		period_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (period_id, kind)
	);

	CREATE TABLE IF NOT EXISTS logs (
		period_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		entry_json TEXT NOT NULL,
		PRIMARY KEY (period_id, seq)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SAVE
// =============================================================================

// Save replaces the person's rows wholesale inside one transaction.
func (s *Store) Save(ctx context.Context, person *benefit.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.deletePerson(ctx, tx, person.ID); err != nil {
		return err
	}

	w := &rowWriter{ctx: ctx, tx: tx}
	person.Accept(w)
	if w.err != nil {
		return fmt.Errorf("failed to save person %s: %w", person.ID, w.err)
	}

	return tx.Commit()
}

func (s *Store) deletePerson(ctx context.Context, tx *sql.Tx, personID string) error {
	for _, stmt := range []string{
		`DELETE FROM timeline_days WHERE period_id IN (SELECT id FROM periods WHERE person_id = ?)`,
		`DELETE FROM locked_periods WHERE period_id IN (SELECT id FROM periods WHERE person_id = ?)`,
		`DELETE FROM settlements WHERE period_id IN (SELECT id FROM periods WHERE person_id = ?)`,
		`DELETE FROM needs WHERE period_id IN (SELECT id FROM periods WHERE person_id = ?)`,
		`DELETE FROM logs WHERE period_id IN (SELECT id FROM periods WHERE person_id = ?)`,
		`DELETE FROM periods WHERE person_id = ?`,
		`DELETE FROM persons WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, personID); err != nil {
			return fmt.Errorf("failed to clear person %s: %w", personID, err)
		}
	}
	return nil
}

// rowWriter is the write side of the traversal: each visit inserts a row
// within the surrounding transaction. The first error sticks and later
// visits become no-ops.
type rowWriter struct {
	ctx context.Context
	tx  *sql.Tx
	err error

	periodSeq     int
	lockedSeq     int
	settlementSeq int
	logSeq        int
}

var _ benefit.Visitor = (*rowWriter)(nil)

func (w *rowWriter) exec(query string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = w.tx.ExecContext(w.ctx, query, args...)
}

func (w *rowWriter) VisitPerson(personID string) {
	w.exec(`INSERT INTO persons (id, saved_at) VALUES (?, ?)`,
		personID, time.Now().UTC().Format(time.RFC3339))
}

func (w *rowWriter) VisitPeriod(meta benefit.PeriodMeta) {
	if w.err != nil {
		return
	}
	blob, err := json.Marshal(meta)
	if err != nil {
		w.err = err
		return
	}
	w.exec(`INSERT INTO periods (id, person_id, seq, employer, state, computed_start, computed_end, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID.String(), meta.PersonID, w.periodSeq, meta.Employer, string(meta.State),
		meta.Computed.Start.String(), meta.Computed.End.String(), string(blob))
	w.periodSeq++
	w.lockedSeq = 0
	w.settlementSeq = 0
	w.logSeq = 0
}

func (w *rowWriter) VisitTimelineDay(periodID uuid.UUID, date timeline.Date, entry timeline.Entry) {
	if w.err != nil {
		return
	}
	blob, err := json.Marshal(entry)
	if err != nil {
		w.err = err
		return
	}
	w.exec(`INSERT INTO timeline_days (period_id, date, entry_json) VALUES (?, ?, ?)`,
		periodID.String(), date.String(), string(blob))
}

func (w *rowWriter) VisitLockedPeriod(periodID uuid.UUID, locked timeline.Period) {
	w.exec(`INSERT INTO locked_periods (period_id, seq, start_date, end_date) VALUES (?, ?, ?, ?)`,
		periodID.String(), w.lockedSeq, locked.Start.String(), locked.End.String())
	w.lockedSeq++
}

func (w *rowWriter) VisitSettlement(periodID uuid.UUID, st *settlement.Settlement) {
	if w.err != nil {
		return
	}
	blob, err := json.Marshal(st)
	if err != nil {
		w.err = err
		return
	}
	w.exec(`INSERT INTO settlements (period_id, seq, settlement_json) VALUES (?, ?, ?)`,
		periodID.String(), w.settlementSeq, string(blob))
	w.settlementSeq++
}

func (w *rowWriter) VisitNeed(periodID uuid.UUID, kind benefit.NeedKind) {
	w.exec(`INSERT INTO needs (period_id, kind) VALUES (?, ?)`,
		periodID.String(), string(kind))
}

func (w *rowWriter) VisitLogEntry(periodID uuid.UUID, entry benefit.LogEntry) {
	if w.err != nil {
		return
	}
	blob, err := json.Marshal(entry)
	if err != nil {
		w.err = err
		return
	}
	w.exec(`INSERT INTO logs (period_id, seq, entry_json) VALUES (?, ?, ?)`,
		periodID.String(), w.logSeq, string(blob))
	w.logSeq++
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads the person's rows back in traversal order and replays them
// into a Builder.
func (s *Store) Load(ctx context.Context, personID string) (*benefit.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons WHERE id = ?`, personID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to query person %s: %w", personID, err)
	}
	if exists == 0 {
		return nil, benefit.ErrPersonNotFound
	}

	b := benefit.NewBuilder(s.cfg, s.observers, s.needs)
	b.VisitPerson(personID)

	periodIDs, err := s.loadPeriods(ctx, personID, b)
	if err != nil {
		return nil, err
	}
	for _, periodID := range periodIDs {
		if err := s.loadPeriodRows(ctx, periodID, b); err != nil {
			return nil, err
		}
	}

	return b.Build(), nil
}

func (s *Store) loadPeriods(ctx context.Context, personID string, b *benefit.Builder) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT meta_json FROM periods WHERE person_id = ? ORDER BY seq ASC`, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		var meta benefit.PeriodMeta
		if err := json.Unmarshal([]byte(blob), &meta); err != nil {
			return nil, fmt.Errorf("failed to decode period: %w", err)
		}
		b.VisitPeriod(meta)
		ids = append(ids, meta.ID)
	}
	return ids, rows.Err()
}

func (s *Store) loadPeriodRows(ctx context.Context, periodID uuid.UUID, b *benefit.Builder) error {
	// Timeline days.
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, entry_json FROM timeline_days WHERE period_id = ? ORDER BY date ASC`, periodID.String())
	if err != nil {
		return fmt.Errorf("failed to query timeline days: %w", err)
	}
	for rows.Next() {
		var dateStr, blob string
		if err := rows.Scan(&dateStr, &blob); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan timeline day: %w", err)
		}
		date, err := timeline.ParseDate(dateStr)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to parse timeline date %q: %w", dateStr, err)
		}
		var entry timeline.Entry
		if err := json.Unmarshal([]byte(blob), &entry); err != nil {
			rows.Close()
			return fmt.Errorf("failed to decode timeline day: %w", err)
		}
		b.VisitTimelineDay(periodID, date, entry)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	// Locked date ranges.
	rows, err = s.db.QueryContext(ctx,
		`SELECT start_date, end_date FROM locked_periods WHERE period_id = ? ORDER BY seq ASC`, periodID.String())
	if err != nil {
		return fmt.Errorf("failed to query locked periods: %w", err)
	}
	for rows.Next() {
		var startStr, endStr string
		if err := rows.Scan(&startStr, &endStr); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan locked period: %w", err)
		}
		start, err := timeline.ParseDate(startStr)
		if err != nil {
			rows.Close()
			return err
		}
		end, err := timeline.ParseDate(endStr)
		if err != nil {
			rows.Close()
			return err
		}
		locked, err := timeline.NewPeriod(start, end)
		if err != nil {
			rows.Close()
			return err
		}
		b.VisitLockedPeriod(periodID, locked)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	// Settlements.
	rows, err = s.db.QueryContext(ctx,
		`SELECT settlement_json FROM settlements WHERE period_id = ? ORDER BY seq ASC`, periodID.String())
	if err != nil {
		return fmt.Errorf("failed to query settlements: %w", err)
	}
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan settlement: %w", err)
		}
		var st settlement.Settlement
		if err := json.Unmarshal([]byte(blob), &st); err != nil {
			rows.Close()
			return fmt.Errorf("failed to decode settlement: %w", err)
		}
		b.VisitSettlement(periodID, &st)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	// Outstanding needs.
	rows, err = s.db.QueryContext(ctx,
		`SELECT kind FROM needs WHERE period_id = ? ORDER BY kind ASC`, periodID.String())
	if err != nil {
		return fmt.Errorf("failed to query needs: %w", err)
	}
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan need: %w", err)
		}
		b.VisitNeed(periodID, benefit.NeedKind(kind))
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	// Event log.
	rows, err = s.db.QueryContext(ctx,
		`SELECT entry_json FROM logs WHERE period_id = ? ORDER BY seq ASC`, periodID.String())
	if err != nil {
		return fmt.Errorf("failed to query logs: %w", err)
	}
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan log entry: %w", err)
		}
		var entry benefit.LogEntry
		if err := json.Unmarshal([]byte(blob), &entry); err != nil {
			rows.Close()
			return fmt.Errorf("failed to decode log entry: %w", err)
		}
		b.VisitLogEntry(periodID, entry)
	}
	return closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	rows.Close()
	return err
}

// =============================================================================
// QUERIES
// =============================================================================

// ListPersons returns every saved person id.
func (s *Store) ListPersons(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM persons ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountPeriodsByState returns how many periods sit in each state, for the
// admin overview.
func (s *Store) CountPeriodsByState(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM periods GROUP BY state ORDER BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"timeline_days", "locked_periods", "settlements", "needs", "logs", "periods", "persons"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
