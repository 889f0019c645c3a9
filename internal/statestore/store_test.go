package statestore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/openlumen/lumen-core/internal/dmx"
	"github.com/openlumen/lumen-core/internal/infrastructure/database"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
	_ "github.com/openlumen/lumen-core/migrations"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return New(db, logging.Default())
}

func frame(fill byte) []byte {
	f := make([]byte, dmx.SlotCount)
	for i := range f {
		f[i] = fill
	}
	return f
}

// ─── Universe snapshots ──────────────────────────────────────────────────────

func TestUniverseSnapshotRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveUniverse(ctx, 1, frame(10)); err != nil {
		t.Fatalf("SaveUniverse() error = %v", err)
	}
	if err := store.SaveUniverse(ctx, 42, frame(20)); err != nil {
		t.Fatalf("SaveUniverse() error = %v", err)
	}

	frames, err := store.LoadUniverses(ctx)
	if err != nil {
		t.Fatalf("LoadUniverses() error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}
	if !bytes.Equal(frames[1], frame(10)) {
		t.Error("universe 1 frame does not match saved data")
	}
	if !bytes.Equal(frames[42], frame(20)) {
		t.Error("universe 42 frame does not match saved data")
	}
}

func TestSaveUniverseOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveUniverse(ctx, 1, frame(10)); err != nil {
		t.Fatalf("SaveUniverse() error = %v", err)
	}
	if err := store.SaveUniverse(ctx, 1, frame(99)); err != nil {
		t.Fatalf("SaveUniverse() overwrite error = %v", err)
	}

	frames, err := store.LoadUniverses(ctx)
	if err != nil {
		t.Fatalf("LoadUniverses() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1 after upsert", len(frames))
	}
	if frames[1][0] != 99 {
		t.Errorf("slot 0 = %d, want the later write 99", frames[1][0])
	}
}

func TestSaveUniverseRejectsWrongSize(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, size := range []int{0, 511, 513} {
		if err := store.SaveUniverse(ctx, 1, make([]byte, size)); !errors.Is(err, ErrBadSnapshot) {
			t.Errorf("SaveUniverse(%d bytes) error = %v, want ErrBadSnapshot", size, err)
		}
	}
}

func TestDeleteUniverse(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveUniverse(ctx, 1, frame(10)); err != nil {
		t.Fatalf("SaveUniverse() error = %v", err)
	}
	if err := store.DeleteUniverse(ctx, 1); err != nil {
		t.Fatalf("DeleteUniverse() error = %v", err)
	}

	frames, err := store.LoadUniverses(ctx)
	if err != nil {
		t.Fatalf("LoadUniverses() error = %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("len(frames) = %d after delete, want 0", len(frames))
	}

	// Deleting a universe that was never stored is fine.
	if err := store.DeleteUniverse(ctx, 7); err != nil {
		t.Errorf("DeleteUniverse(missing) error = %v", err)
	}
}

// ─── Device states ───────────────────────────────────────────────────────────

func TestDeviceStateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"on":true,"brightness":0.8}`)
	if err := store.SaveDeviceState(ctx, "spot-kitchen-1", payload); err != nil {
		t.Fatalf("SaveDeviceState() error = %v", err)
	}

	states, err := store.LoadDeviceStates(ctx)
	if err != nil {
		t.Fatalf("LoadDeviceStates() error = %v", err)
	}
	if !bytes.Equal(states["spot-kitchen-1"], payload) {
		t.Errorf("state = %s, want %s", states["spot-kitchen-1"], payload)
	}

	// Later saves replace the stored state.
	updated := []byte(`{"on":false}`)
	if err := store.SaveDeviceState(ctx, "spot-kitchen-1", updated); err != nil {
		t.Fatalf("SaveDeviceState() overwrite error = %v", err)
	}
	states, err = store.LoadDeviceStates(ctx)
	if err != nil {
		t.Fatalf("LoadDeviceStates() error = %v", err)
	}
	if len(states) != 1 || !bytes.Equal(states["spot-kitchen-1"], updated) {
		t.Errorf("states after overwrite = %v, want single updated row", states)
	}
}

func TestSaveDeviceStateRequiresName(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveDeviceState(context.Background(), "", []byte(`{}`)); !errors.Is(err, ErrEmptyName) {
		t.Errorf("SaveDeviceState(\"\") error = %v, want ErrEmptyName", err)
	}
}

func TestDeleteDeviceState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveDeviceState(ctx, "strip-1", []byte(`{}`)); err != nil {
		t.Fatalf("SaveDeviceState() error = %v", err)
	}
	if err := store.DeleteDeviceState(ctx, "strip-1"); err != nil {
		t.Fatalf("DeleteDeviceState() error = %v", err)
	}

	states, err := store.LoadDeviceStates(ctx)
	if err != nil {
		t.Fatalf("LoadDeviceStates() error = %v", err)
	}
	if len(states) != 0 {
		t.Errorf("len(states) = %d after delete, want 0", len(states))
	}

	if err := store.DeleteDeviceState(ctx, ""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("DeleteDeviceState(\"\") error = %v, want ErrEmptyName", err)
	}
}

func TestLoadEmptyStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	frames, err := store.LoadUniverses(ctx)
	if err != nil {
		t.Fatalf("LoadUniverses() error = %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("len(frames) = %d on fresh store, want 0", len(frames))
	}

	states, err := store.LoadDeviceStates(ctx)
	if err != nil {
		t.Fatalf("LoadDeviceStates() error = %v", err)
	}
	if len(states) != 0 {
		t.Errorf("len(states) = %d on fresh store, want 0", len(states))
	}
}
