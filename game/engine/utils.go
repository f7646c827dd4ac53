package engine

// CellDistance returns the Chebyshev distance between two cells in tiles
func CellDistance(from, to Cell) int {
	return max(abs(from.I-to.I), abs(from.J-to.J))
}

// FindNearestCache finds the closest live cache holding at least one token and
// returns its view and distance in tiles. Ties keep neighborhood order.
func FindNearestCache(state *WorldState) (CacheView, int, bool) {
	minDistance := -1
	var nearest CacheView
	found := false

	for _, cache := range state.Caches {
		if len(cache.Tokens) == 0 {
			continue
		}
		distance := CellDistance(state.PlayerCell, cache.Cell)
		if minDistance == -1 || distance < minDistance {
			minDistance = distance
			nearest = cache
			found = true
		}
	}

	return nearest, minDistance, found
}

// CountCacheTokens counts tokens across every cache in the state
func CountCacheTokens(state *WorldState) int {
	count := 0
	for _, cache := range state.Caches {
		count += len(cache.Tokens)
	}
	return count
}

// abs returns the absolute value of x
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
