package rng

import (
	"context"
	"math/rand/v2"

	"impactsim/domain/core"
	"impactsim/ports"
)

// SeededAdapter implements ports.RNGPort with PCG streams
type SeededAdapter struct{}

var _ ports.RNGPort = (*SeededAdapter)(nil)

// NewSeededAdapter creates the adapter
func NewSeededAdapter() *SeededAdapter {
	return &SeededAdapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (r *SeededAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewPCG(uint64(seed), hashString(name))), nil
}

// CellStream derives the cell's stream from the base seed and the cell key.
// The seed selects the PCG state, the key selects the increment, so two cells
// never share a sequence for the same seed.
func (r *SeededAdapter) CellStream(ctx context.Context, cell core.CellKey, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewPCG(uint64(baseSeed), hashString(cell.String()))), nil
}

// hashString is djb2 widened to 64 bits
func hashString(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}
