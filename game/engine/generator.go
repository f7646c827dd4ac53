package engine

import (
	"hash/fnv"
	"math"
	"strconv"
)

// Generator maps a cell and a tag to a reproducible value in [0,1)
type Generator interface {
	Value(cell Cell, tag string) float64
}

// HashGenerator is the production Generator. It keeps no state besides the
// seed, so the same (seed, cell, tag) yields the same value in every process.
type HashGenerator struct {
	Seed string
}

// Value hashes "seed|i,j|tag" and maps the top 53 bits onto [0,1)
func (g HashGenerator) Value(cell Cell, tag string) float64 {
	h := fnv.New64a()
	h.Write([]byte(g.Seed))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(cell.I)))
	h.Write([]byte{','})
	h.Write([]byte(strconv.Itoa(cell.J)))
	h.Write([]byte{'|'})
	h.Write([]byte(tag))
	return float64(mix64(h.Sum64())>>11) / (1 << 53)
}

// mix64 is the murmur3 64-bit finalizer
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// Exists decides whether a cache spawns at cell
func Exists(g Generator, cell Cell, spawnChance float64) bool {
	return g.Value(cell, "") < spawnChance
}

// InitialCount returns the size of the cell's original token batch (0..99)
func InitialCount(g Generator, cell Cell) int {
	n := int(math.Floor(g.Value(cell, "initial") * MaxInitialCount))
	if n < 0 {
		return 0
	}
	if n >= MaxInitialCount {
		return MaxInitialCount - 1
	}
	return n
}

// BaselineTokens synthesizes the deterministic token batch for cell
func BaselineTokens(g Generator, cell Cell) []Token {
	count := InitialCount(g, cell)
	tokens := make([]Token, count)
	for serial := 0; serial < count; serial++ {
		tokens[serial] = Token{I: cell.I, J: cell.J, Serial: serial}
	}
	return tokens
}
