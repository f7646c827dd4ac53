package main

import (
	"math/rand/v2"

	"github.com/wricardo/geocache-world/game/engine"
)

// Action is one request the wanderer sends
type Action struct {
	Kind string // "move", "take" or "give"
	Arg  string // direction or cell key
}

// Wanderer walks with momentum and trades tokens with the caches it passes.
// It carries up to Carry tokens before it prefers giving.
type Wanderer struct {
	rng       *rand.Rand
	Carry     int
	TradeRate float64
	heading   string
}

func NewWanderer(seed uint64, carry int, tradeRate float64) *Wanderer {
	dirs := engine.Directions()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Wanderer{
		rng:       rng,
		Carry:     carry,
		TradeRate: tradeRate,
		heading:   dirs[rng.IntN(len(dirs))],
	}
}

// Next picks the action for the current state
func (w *Wanderer) Next(state *engine.WorldState) Action {
	if len(state.Caches) > 0 && w.rng.Float64() < w.TradeRate {
		cache := state.Caches[w.rng.IntN(len(state.Caches))]
		wantGive := len(state.Inventory) >= w.Carry || (len(state.Inventory) > 0 && w.rng.IntN(2) == 0)
		switch {
		case wantGive:
			return Action{Kind: "give", Arg: cache.Key}
		case len(cache.Tokens) > 0:
			return Action{Kind: "take", Arg: cache.Key}
		}
	}

	if w.rng.Float64() < 0.3 {
		dirs := engine.Directions()
		w.heading = dirs[w.rng.IntN(len(dirs))]
	}
	return Action{Kind: "move", Arg: w.heading}
}
