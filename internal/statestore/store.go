package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openlumen/lumen-core/internal/dmx"
	"github.com/openlumen/lumen-core/internal/infrastructure/database"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

var (
	// ErrBadSnapshot indicates a universe snapshot of the wrong size.
	ErrBadSnapshot = errors.New("statestore: snapshot must be exactly one universe of slots")

	// ErrEmptyName indicates a device state saved without a name.
	ErrEmptyName = errors.New("statestore: device name is empty")
)

// Store reads and writes restart snapshots through the shared SQLite
// connection. All methods are safe for concurrent use; SQLite's single
// writer serialises them.
type Store struct {
	db  *database.DB
	log *logging.Logger
	now func() time.Time
}

// New creates a store over an open database. The schema must already
// be migrated.
func New(db *database.DB, log *logging.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With("component", "statestore"),
		now: time.Now,
	}
}

// SaveUniverse upserts the full slot frame for one universe.
func (s *Store) SaveUniverse(ctx context.Context, id dmx.UniverseID, slots []byte) error {
	if len(slots) != dmx.SlotCount {
		return fmt.Errorf("%w: got %d bytes", ErrBadSnapshot, len(slots))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO universe_snapshots (universe, slots, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(universe) DO UPDATE SET
			slots = excluded.slots,
			updated_at = excluded.updated_at
	`, uint16(id), slots, s.timestamp())
	if err != nil {
		return fmt.Errorf("saving universe %d: %w", uint16(id), err)
	}
	return nil
}

// LoadUniverses returns every stored universe frame keyed by universe
// number. Rows with a malformed frame are skipped with a warning so
// one bad row cannot block startup.
func (s *Store) LoadUniverses(ctx context.Context) (map[dmx.UniverseID][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT universe, slots FROM universe_snapshots")
	if err != nil {
		return nil, fmt.Errorf("loading universes: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	frames := make(map[dmx.UniverseID][]byte)
	for rows.Next() {
		var (
			universe uint16
			slots    []byte
		)
		if err := rows.Scan(&universe, &slots); err != nil {
			return nil, fmt.Errorf("scanning universe row: %w", err)
		}
		if len(slots) != dmx.SlotCount {
			s.log.Warn("skipping malformed universe snapshot",
				"universe", universe, "bytes", len(slots))
			continue
		}
		frames[dmx.UniverseID(universe)] = slots
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating universe rows: %w", err)
	}
	return frames, nil
}

// DeleteUniverse removes one universe's snapshot. Deleting a universe
// that was never stored is not an error.
func (s *Store) DeleteUniverse(ctx context.Context, id dmx.UniverseID) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM universe_snapshots WHERE universe = ?", uint16(id))
	if err != nil {
		return fmt.Errorf("deleting universe %d: %w", uint16(id), err)
	}
	return nil
}

// SaveDeviceState upserts one device's settled state. The payload is
// opaque JSON produced by the controller.
func (s *Store) SaveDeviceState(ctx context.Context, name string, state []byte) error {
	if name == "" {
		return ErrEmptyName
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_states (name, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, name, string(state), s.timestamp())
	if err != nil {
		return fmt.Errorf("saving device state %q: %w", name, err)
	}
	return nil
}

// LoadDeviceStates returns every stored device state keyed by device
// name.
func (s *Store) LoadDeviceStates(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, state FROM device_states")
	if err != nil {
		return nil, fmt.Errorf("loading device states: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	states := make(map[string][]byte)
	for rows.Next() {
		var (
			name  string
			state string
		)
		if err := rows.Scan(&name, &state); err != nil {
			return nil, fmt.Errorf("scanning device state row: %w", err)
		}
		states[name] = []byte(state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device state rows: %w", err)
	}
	return states, nil
}

// DeleteDeviceState removes one device's stored state, for devices
// dropped from the configuration.
func (s *Store) DeleteDeviceState(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM device_states WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting device state %q: %w", name, err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
