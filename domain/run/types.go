package run

import (
	"fmt"

	"impactsim/domain/core"
)

// RunFingerprint ensures deterministic replay: two runs with equal
// fingerprints produce identical results regardless of worker count
type RunFingerprint struct {
	GridHash          core.GridHash      `json:"grid_hash"`
	ConstantsHash     core.ConstantsHash `json:"constants_hash"`
	Seed              int64              `json:"seed"`
	ProbabilityPolicy string             `json:"probability_policy"`
	CodeVersion       string             `json:"code_version"`
	Fingerprint       core.Hash          `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(gridHash core.GridHash, constantsHash core.ConstantsHash,
	seed int64, policy, codeVersion string) RunFingerprint {

	return RunFingerprint{
		GridHash:          gridHash,
		ConstantsHash:     constantsHash,
		Seed:              seed,
		ProbabilityPolicy: policy,
		CodeVersion:       codeVersion,
		Fingerprint:       computeRunFingerprint(gridHash, constantsHash, seed, policy, codeVersion),
	}
}

// Verify recomputes the fingerprint and compares it with the stored one
func (f RunFingerprint) Verify() error {
	want := computeRunFingerprint(f.GridHash, f.ConstantsHash, f.Seed, f.ProbabilityPolicy, f.CodeVersion)
	if want != f.Fingerprint {
		return fmt.Errorf("%w: stored %s, computed %s", core.ErrHashMismatch, f.Fingerprint.Short(), want.Short())
	}
	return nil
}

// SameRun reports whether two fingerprints describe the same deterministic run
func (f RunFingerprint) SameRun(other RunFingerprint) bool {
	return f.Fingerprint == other.Fingerprint
}

func computeRunFingerprint(gridHash core.GridHash, constantsHash core.ConstantsHash,
	seed int64, policy, codeVersion string) core.Hash {

	data := fmt.Sprintf("grid:%s|constants:%s|seed:%d|policy:%s|code:%s",
		gridHash, constantsHash, seed, policy, codeVersion)

	return core.NewHash([]byte(data))
}
