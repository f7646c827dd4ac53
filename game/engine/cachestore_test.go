package engine

import (
	"reflect"
	"testing"
)

func TestSnapshotCodec(t *testing.T) {
	tokens := []Token{{I: 3, J: 4, Serial: 0}, {I: 3, J: 4, Serial: 7}, {I: -1, J: 2, Serial: 3}}

	snap, err := EncodeSnapshot(tokens)
	if err != nil {
		t.Fatalf("Failed to encode snapshot: %v", err)
	}
	decoded, err := DecodeSnapshot(snap)
	if err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if !reflect.DeepEqual(decoded, tokens) {
		t.Errorf("Expected %v, got %v", tokens, decoded)
	}

	empty, err := EncodeSnapshot(nil)
	if err != nil {
		t.Fatalf("Failed to encode empty snapshot: %v", err)
	}
	if empty != "[]" {
		t.Errorf("Expected [] for empty list, got %s", empty)
	}

	for _, bad := range []Snapshot{"", "null", "{", `{"i":1}`} {
		if _, err := DecodeSnapshot(bad); err == nil {
			t.Errorf("Expected error decoding %q", bad)
		}
	}
}

func TestCacheStore_MaterializeBaseline(t *testing.T) {
	board := NewBoard(1e-4, 1)
	store := NewCacheStore(scenarioGenerator(), 0.1)

	cache, ok := store.Materialize(board.CellAt(3, 4))
	if !ok {
		t.Fatal("Expected cache at (3,4)")
	}
	if cache.Len() != 42 {
		t.Errorf("Expected 42 tokens, got %d", cache.Len())
	}
	for serial, token := range cache.Tokens {
		if token.Serial != serial {
			t.Errorf("Expected serial %d, got %d", serial, token.Serial)
		}
	}

	if _, ok := store.Materialize(board.CellAt(0, 0)); ok {
		t.Error("Expected no cache at (0,0)")
	}

	live, ok := store.Live("3,4")
	if !ok || live != cache {
		t.Error("Expected materialized cache to be live")
	}

	again, _ := store.Materialize(board.CellAt(3, 4))
	if again != cache {
		t.Error("Expected materializing a live cell to return the live cache")
	}
}

func TestCacheStore_SnapshotRoundTrip(t *testing.T) {
	board := NewBoard(1e-4, 1)
	store := NewCacheStore(scenarioGenerator(), 0.1)
	inv := &Inventory{}

	cache, _ := store.Materialize(board.CellAt(3, 4))
	if !Take(cache, inv) {
		t.Fatal("Expected take to succeed")
	}
	if err := store.Capture(cache); err != nil {
		t.Fatalf("Failed to capture: %v", err)
	}
	captured := append([]Token(nil), cache.Tokens...)

	store.Dematerialize(cache)
	if _, ok := store.Live("3,4"); ok {
		t.Error("Expected cache to be dropped after dematerialize")
	}

	restored, ok := store.Materialize(board.CellAt(3, 4))
	if !ok {
		t.Fatal("Expected cache to rematerialize")
	}
	if restored == cache {
		t.Error("Expected a fresh cache instance")
	}
	if !reflect.DeepEqual(restored.Tokens, captured) {
		t.Errorf("Expected restored tokens %v, got %v", captured, restored.Tokens)
	}
	if restored.Len() != 41 {
		t.Errorf("Expected 41 tokens, got %d", restored.Len())
	}
	for serial, token := range restored.Tokens {
		if token.Serial != serial {
			t.Errorf("Expected serial %d at index %d, got %d", serial, serial, token.Serial)
		}
	}
}

func TestCacheStore_DematerializeWithoutCaptureLosesMutation(t *testing.T) {
	board := NewBoard(1e-4, 1)
	store := NewCacheStore(scenarioGenerator(), 0.1)

	cache, _ := store.Materialize(board.CellAt(3, 4))
	Take(cache, &Inventory{})
	store.Dematerialize(cache)

	again, _ := store.Materialize(board.CellAt(3, 4))
	if again.Len() != 42 {
		t.Errorf("Expected baseline 42 tokens without capture, got %d", again.Len())
	}
}

func TestCacheStore_Clear(t *testing.T) {
	board := NewBoard(1e-4, 1)
	store := NewCacheStore(scenarioGenerator(), 0.1)

	cache, _ := store.Materialize(board.CellAt(3, 4))
	cache.Tokens = cache.Tokens[:10]
	store.Capture(cache)
	store.Dematerialize(cache)
	store.Clear()

	if len(store.Entries()) != 0 {
		t.Errorf("Expected no entries after clear, got %d", len(store.Entries()))
	}
	again, _ := store.Materialize(board.CellAt(3, 4))
	if again.Len() != 42 {
		t.Errorf("Expected baseline after clear, got %d tokens", again.Len())
	}
}

func TestCacheStore_EntriesAndRestore(t *testing.T) {
	gen := stubGenerator{fallback: 0.01, values: map[string]float64{}}
	board := NewBoard(1e-4, 1)
	store := NewCacheStore(gen, 0.1)

	for _, c := range []*Cell{board.CellAt(1, 1), board.CellAt(-2, 5), board.CellAt(1, 1)} {
		cache, _ := store.Materialize(c)
		store.Capture(cache)
	}

	entries := store.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Key != "1,1" || entries[1].Key != "-2,5" {
		t.Errorf("Expected first-capture order, got %s then %s", entries[0].Key, entries[1].Key)
	}

	other := NewCacheStore(gen, 0.1)
	if err := other.Restore(entries); err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}
	if !reflect.DeepEqual(other.Entries(), entries) {
		t.Error("Expected restored entries to match")
	}

	t.Run("rejects bad key", func(t *testing.T) {
		err := other.Restore([]SnapshotEntry{{Key: "nope", Snapshot: "[]"}})
		if err == nil {
			t.Error("Expected error for malformed key")
		}
		if len(other.Entries()) != 2 {
			t.Error("Expected table untouched after failed restore")
		}
	})

	t.Run("rejects bad payload", func(t *testing.T) {
		if err := other.Restore([]SnapshotEntry{{Key: "1,1", Snapshot: "{"}}); err == nil {
			t.Error("Expected error for malformed snapshot")
		}
	})
}
