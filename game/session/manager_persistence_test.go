package session

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wricardo/geocache-world/game/engine"
)

// persistenceBackends builds each SessionPersistence rooted in dir. The
// returned function reopens the backend as a restarted process would.
func persistenceBackends(t *testing.T) map[string]func(dir string) SessionPersistence {
	return map[string]func(dir string) SessionPersistence{
		"file": func(dir string) SessionPersistence {
			fp, err := NewFilePersistence(dir)
			if err != nil {
				t.Fatalf("Failed to open file persistence: %v", err)
			}
			return fp
		},
		"sqlite": func(dir string) SessionPersistence {
			sp, err := NewSQLitePersistence(filepath.Join(dir, "world.db"))
			if err != nil {
				t.Fatalf("Failed to open sqlite persistence: %v", err)
			}
			t.Cleanup(func() { sp.Close() })
			return sp
		},
	}
}

func TestManager_RestartRestoresWorld(t *testing.T) {
	for name, open := range persistenceBackends(t) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			first := NewManagerWithPersistence(open(dir))
			session, err := first.Create("keep", "test", createTestConfig())
			if err != nil {
				t.Fatalf("Failed to create session: %v", err)
			}
			world := session.World
			world.Step("east")
			world.Step("north")
			for _, cache := range world.ActiveCaches() {
				world.Take(cache.Key())
			}
			want := world.GetState()

			second := NewManagerWithPersistence(open(dir))
			restored, err := second.Get("keep")
			if err != nil {
				t.Fatalf("Failed to load session after restart: %v", err)
			}
			got := restored.World.GetState()

			if got.Location != want.Location {
				t.Errorf("Expected location %+v, got %+v", want.Location, got.Location)
			}
			if !reflect.DeepEqual(got.Trail, want.Trail) {
				t.Errorf("Expected trail %v, got %v", want.Trail, got.Trail)
			}
			if !reflect.DeepEqual(got.Inventory, want.Inventory) {
				t.Errorf("Expected inventory %v, got %v", want.Inventory, got.Inventory)
			}
			if !reflect.DeepEqual(got.Caches, want.Caches) {
				t.Error("Expected live caches to match after restart")
			}
			if restored.ConfigName != "test" {
				t.Errorf("Expected config name 'test', got %q", restored.ConfigName)
			}
		})
	}
}

func TestManager_LoadPersistedSessions(t *testing.T) {
	for name, open := range persistenceBackends(t) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			first := NewManagerWithPersistence(open(dir))
			for _, id := range []string{"one", "two"} {
				if _, err := first.Create(id, "test", createTestConfig()); err != nil {
					t.Fatalf("Failed to create %s: %v", id, err)
				}
			}

			second := NewManagerWithPersistence(open(dir))
			if err := second.LoadPersistedSessions(); err != nil {
				t.Fatalf("Failed to load sessions: %v", err)
			}
			if second.Count() != 2 {
				t.Errorf("Expected 2 sessions loaded, got %d", second.Count())
			}
		})
	}
}

func TestManager_DeleteRemovesRecords(t *testing.T) {
	for name, open := range persistenceBackends(t) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			persistence := open(dir)
			manager := NewManagerWithPersistence(persistence)
			manager.Create("temp", "test", createTestConfig())

			if err := manager.Delete("temp"); err != nil {
				t.Fatalf("Failed to delete: %v", err)
			}
			if persistence.Exists("temp") {
				t.Error("Expected session to be removed from persistence")
			}

			// Re-creating with the same ID starts from a fresh world
			session, err := manager.Create("temp", "test", createTestConfig())
			if err != nil {
				t.Fatalf("Failed to recreate: %v", err)
			}
			if len(session.World.Trail()) != 1 {
				t.Errorf("Expected a fresh trail, got %d points", len(session.World.Trail()))
			}
		})
	}
}

func TestManager_ResetPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	fp, _ := NewFilePersistence(dir)
	manager := NewManagerWithPersistence(fp)
	session, _ := manager.Create("rst", "test", createTestConfig())

	world := session.World
	for _, cache := range world.ActiveCaches() {
		world.Take(cache.Key())
	}
	if err := world.Reset(); err != nil {
		t.Fatalf("Failed to reset: %v", err)
	}

	reopened, _ := NewFilePersistence(dir)
	restored, err := NewManagerWithPersistence(reopened).Get("rst")
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if len(restored.World.Inventory()) != 0 {
		t.Error("Expected empty inventory after reset and restart")
	}
}

// metaFailingPersistence fails SaveMeta while failMeta is set
type metaFailingPersistence struct {
	*MemoryPersistence
	failMeta error
}

func (p *metaFailingPersistence) SaveMeta(meta *SessionMeta) error {
	if p.failMeta != nil {
		return p.failMeta
	}
	return p.MemoryPersistence.SaveMeta(meta)
}

func TestManager_CreateMetaFailureLeavesNoRecords(t *testing.T) {
	persistence := &metaFailingPersistence{MemoryPersistence: NewMemoryPersistence(), failMeta: errors.New("disk full")}
	manager := NewManagerWithPersistence(persistence)

	if _, err := manager.Create("walker", "test", createTestConfig()); err == nil {
		t.Fatal("Expected metadata failure to propagate")
	}

	storage, err := persistence.Storage("walker")
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	for _, key := range []string{engine.RecordCache, engine.RecordInventory, engine.RecordLocation, engine.RecordTrail} {
		if _, ok, _ := storage.Get(key); ok {
			t.Errorf("Expected no %s record after a failed create", key)
		}
	}
	if _, err := manager.Get("walker"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	persistence.failMeta = nil
	session, err := manager.Create("walker", "test", createTestConfig())
	if err != nil {
		t.Fatalf("Expected create to succeed once metadata saves, got %v", err)
	}
	if len(session.World.Trail()) != 1 || len(session.World.Inventory()) != 0 {
		t.Error("Expected a freshly seeded world")
	}
}
