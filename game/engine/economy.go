package engine

// Both containers are stacks: a transfer pops the last token of the source
// and pushes it onto the end of the destination.

// Take moves the cache's last token into the inventory. It returns false and
// changes nothing when the cache is empty.
func Take(cache *Cache, inv *Inventory) bool {
	n := len(cache.Tokens)
	if n == 0 {
		return false
	}
	token := cache.Tokens[n-1]
	cache.Tokens = cache.Tokens[:n-1]
	inv.Tokens = append(inv.Tokens, token)
	return true
}

// Give moves the inventory's last token into the cache. It returns false and
// changes nothing when the inventory is empty.
func Give(cache *Cache, inv *Inventory) bool {
	n := len(inv.Tokens)
	if n == 0 {
		return false
	}
	token := inv.Tokens[n-1]
	inv.Tokens = inv.Tokens[:n-1]
	cache.Tokens = append(cache.Tokens, token)
	return true
}

// CountTokens returns the total number of tokens across caches and inventory
func CountTokens(caches []*Cache, inv *Inventory) int {
	total := inv.Len()
	for _, cache := range caches {
		total += cache.Len()
	}
	return total
}
