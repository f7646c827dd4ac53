package engine

import "testing"

func TestCellDistance(t *testing.T) {
	tests := []struct {
		from, to Cell
		want     int
	}{
		{Cell{0, 0}, Cell{0, 0}, 0},
		{Cell{3, 4}, Cell{5, 4}, 2},
		{Cell{-2, 1}, Cell{1, -5}, 6},
	}

	for _, tt := range tests {
		if got := CellDistance(tt.from, tt.to); got != tt.want {
			t.Errorf("CellDistance(%v, %v) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFindNearestCache(t *testing.T) {
	state := &WorldState{
		PlayerCell: Cell{I: 0, J: 0},
		Caches: []CacheView{
			{Key: "0,1", Cell: Cell{I: 0, J: 1}},
			{Key: "2,2", Cell: Cell{I: 2, J: 2}, Tokens: []Token{{I: 2, J: 2}}},
			{Key: "-2,0", Cell: Cell{I: -2, J: 0}, Tokens: []Token{{I: -2, J: 0}, {I: -2, J: 0, Serial: 1}}},
		},
	}

	nearest, distance, ok := FindNearestCache(state)
	if !ok {
		t.Fatal("Expected a cache with tokens")
	}
	if nearest.Key != "2,2" || distance != 2 {
		t.Errorf("Expected the first cache at distance 2 to win, got %s at %d", nearest.Key, distance)
	}
	if got := CountCacheTokens(state); got != 3 {
		t.Errorf("Expected 3 tokens, got %d", got)
	}

	if _, _, ok := FindNearestCache(&WorldState{Caches: state.Caches[:1]}); ok {
		t.Error("Expected no result when every cache is empty")
	}
}
