package registry

import (
	"path/filepath"
	"testing"

	"github.com/dokzlo13/wledkit/internal/db"
	"github.com/dokzlo13/wledkit/internal/storage"
)

func openRegistry(t *testing.T, path string) *Registry {
	t.Helper()

	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	r, err := New(storage.NewStore(database.DB))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestStableID(t *testing.T) {
	if StableID("Desk") != StableID("Desk") {
		t.Error("StableID must be deterministic")
	}
	if StableID("Desk") == StableID("Shelf") {
		t.Error("different names must yield different ids")
	}
}

func TestRestoreAllocatesIDs(t *testing.T) {
	r := openRegistry(t, filepath.Join(t.TempDir(), "reg.sqlite"))

	desk, restored, err := r.Restore("Desk", []string{"10.0.0.2"})
	if err != nil || restored {
		t.Fatalf("Restore(Desk) = %+v, %v, %v", desk, restored, err)
	}
	shelf, _, err := r.Restore("Shelf", []string{"10.0.0.3"})
	if err != nil {
		t.Fatal(err)
	}

	if desk.AID != FirstAccessoryID || shelf.AID != FirstAccessoryID+1 {
		t.Errorf("aids = %d, %d, want %d, %d", desk.AID, shelf.AID, FirstAccessoryID, FirstAccessoryID+1)
	}
	if desk.UUID != StableID("Desk") {
		t.Errorf("uuid = %s", desk.UUID)
	}
}

func TestRestoreAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.sqlite")

	first := openRegistry(t, path)
	original, _, err := first.Restore("Desk", []string{"10.0.0.2"})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := first.Restore("Old", []string{"10.0.0.9"}); err != nil {
		t.Fatal(err)
	}

	second := openRegistry(t, path)
	rec, restored, err := second.Restore("Desk", []string{"10.0.0.2", "10.0.0.4"})
	if err != nil {
		t.Fatal(err)
	}
	if !restored || rec.AID != original.AID {
		t.Errorf("restored=%v aid=%d, want true/%d", restored, rec.AID, original.AID)
	}
	if len(rec.Hosts) != 2 {
		t.Errorf("hosts = %v, want updated list", rec.Hosts)
	}

	removed, err := second.Prune([]string{rec.UUID})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0].Name != "Old" {
		t.Errorf("removed = %+v, want Old", removed)
	}
	if all := second.All(); len(all) != 1 || all[0].Name != "Desk" {
		t.Errorf("All() = %+v", all)
	}

	third := openRegistry(t, path)
	if all := third.All(); len(all) != 1 {
		t.Errorf("pruned accessory still persisted: %+v", all)
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.sqlite")

	r := openRegistry(t, path)
	if _, _, err := r.Restore("Desk", []string{"10.0.0.2"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := len(r.All()); got != 0 {
		t.Errorf("All() after Clear = %d records", got)
	}

	if got := len(openRegistry(t, path).All()); got != 0 {
		t.Errorf("reopened registry has %d records", got)
	}
}
