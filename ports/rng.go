package ports

import (
	"context"
	"math/rand/v2"

	"impactsim/domain/core"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// CellStream creates the stream for one grid cell. The same (baseSeed, cell)
	// pair always yields the same sequence, independent of scheduling order.
	CellStream(ctx context.Context, cell core.CellKey, baseSeed int64) (*rand.Rand, error)
}
