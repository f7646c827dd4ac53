package main

import (
	"fmt"
	"slices"

	"github.com/wricardo/geocache-world/game/engine"
)

// Auditor checks the world invariants a client can observe from outside:
// caches come back exactly as they were left, exchanges move exactly one
// token, and no token is ever duplicated or lost.
type Auditor struct {
	// fresh means every cache not yet seen must still hold its baseline batch
	fresh bool

	caches    map[string][]engine.Token
	inventory []engine.Token
	started   bool

	pendingKey string
	pending    func()

	Violations []string
}

// NewAuditor starts an audit. fresh is true for new or just-reset sessions.
func NewAuditor(fresh bool) *Auditor {
	return &Auditor{fresh: fresh, caches: map[string][]engine.Token{}}
}

// Total is the number of tokens in every cache seen so far plus the inventory
func (a *Auditor) Total() int {
	n := len(a.inventory)
	for _, tokens := range a.caches {
		n += len(tokens)
	}
	return n
}

// Seen is the number of distinct caches observed
func (a *Auditor) Seen() int {
	return len(a.caches)
}

func (a *Auditor) violate(format string, args ...any) {
	a.Violations = append(a.Violations, fmt.Sprintf(format, args...))
}

// ExpectTake records that a successful take at key happened before the next Observe
func (a *Auditor) ExpectTake(key string) {
	a.pendingKey = key
	a.pending = func() {
		tokens := a.caches[key]
		if len(tokens) == 0 {
			a.violate("take at %s succeeded on a cache last seen empty", key)
			return
		}
		top := tokens[len(tokens)-1]
		a.caches[key] = tokens[:len(tokens)-1]
		a.inventory = append(a.inventory, top)
	}
}

// ExpectGive records that a successful give at key happened before the next Observe
func (a *Auditor) ExpectGive(key string) {
	a.pendingKey = key
	a.pending = func() {
		if len(a.inventory) == 0 {
			a.violate("give at %s succeeded with an empty inventory", key)
			return
		}
		top := a.inventory[len(a.inventory)-1]
		a.inventory = a.inventory[:len(a.inventory)-1]
		a.caches[key] = append(slices.Clone(a.caches[key]), top)
	}
}

// Observe compares a state snapshot with what the audit expects and adopts it
func (a *Auditor) Observe(state *engine.WorldState) {
	if state == nil {
		a.violate("missing world state")
		return
	}
	if a.pending != nil {
		if _, ok := a.caches[a.pendingKey]; !ok {
			a.violate("exchange at %s on a cache never seen", a.pendingKey)
		} else {
			a.pending()
		}
		a.pending = nil
		a.pendingKey = ""
	}

	seen := map[engine.Token]string{}
	note := func(t engine.Token, where string) {
		if other, dup := seen[t]; dup {
			a.violate("token %s appears in both %s and %s", t, other, where)
		}
		seen[t] = where
	}
	for _, t := range state.Inventory {
		note(t, "inventory")
	}

	if a.started && !slices.Equal(a.inventory, state.Inventory) {
		a.violate("inventory changed unexpectedly: expected %v, got %v", a.inventory, state.Inventory)
	}

	for _, cache := range state.Caches {
		for _, t := range cache.Tokens {
			note(t, "cache "+cache.Key)
		}

		last, known := a.caches[cache.Key]
		switch {
		case known && !slices.Equal(last, cache.Tokens):
			a.violate("cache %s changed while unattended: expected %d tokens, got %d", cache.Key, len(last), len(cache.Tokens))
		case !known && a.fresh:
			a.checkBaseline(cache)
		}
		a.caches[cache.Key] = slices.Clone(cache.Tokens)
	}

	a.inventory = slices.Clone(state.Inventory)
	a.started = true
}

// checkBaseline verifies an untouched cache holds only its own serials 0..n-1
func (a *Auditor) checkBaseline(cache engine.CacheView) {
	for serial, t := range cache.Tokens {
		if t.I != cache.Cell.I || t.J != cache.Cell.J || t.Serial != serial {
			a.violate("untouched cache %s holds %s at position %d", cache.Key, t, serial)
			return
		}
	}
}
