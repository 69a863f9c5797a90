package run

import (
	"encoding/json"
	"os"
	"time"

	"impactsim/domain/core"
	"impactsim/domain/scenario"
)

// Grid is the sampling grid recorded in the manifest
type Grid struct {
	MinN        int   `json:"min_n"`
	MaxN        int   `json:"max_n"`
	Step        int   `json:"step"`
	Iterations  int   `json:"iterations"`
	SampleSizes []int `json:"sample_sizes"`
}

// Manifest is the reproducibility record written next to a run's outputs
type Manifest struct {
	RunID        core.RunID         `json:"run_id"`
	Grid         Grid               `json:"grid"`
	Constants    map[string]float64 `json:"constants"`
	Workers      int                `json:"workers"`
	Fingerprint  RunFingerprint     `json:"fingerprint"`
	Cells        int                `json:"cells"`
	CellFailures int                `json:"cell_failures"`
	Gaps         []scenario.Gap     `json:"gaps"`
	Outputs      []string           `json:"outputs"`
	CreatedAt    core.Timestamp     `json:"created_at"`
	CompletedAt  core.Timestamp     `json:"completed_at"`
	DurationMS   int64              `json:"duration_ms"`
}

// NewManifest starts a manifest for a run about to execute
func NewManifest(runID core.RunID, grid Grid, constants map[string]float64, workers int, fp RunFingerprint) *Manifest {
	return &Manifest{
		RunID:       runID,
		Grid:        grid,
		Constants:   constants,
		Workers:     workers,
		Fingerprint: fp,
		Cells:       len(grid.SampleSizes) * grid.Iterations,
		Gaps:        []scenario.Gap{},
		CreatedAt:   core.Now(),
	}
}

// Complete records the aggregation outcome and the files produced
func (m *Manifest) Complete(summary *scenario.Summary, outputs []string) {
	m.CellFailures = summary.CellFailures
	m.Gaps = append([]scenario.Gap{}, summary.Gaps...)
	m.Outputs = outputs
	m.CompletedAt = core.Now()
	m.DurationMS = m.CompletedAt.Time().Sub(m.CreatedAt.Time()).Milliseconds()
}

// Duration of the run, zero until Complete
func (m *Manifest) Duration() time.Duration {
	return time.Duration(m.DurationMS) * time.Millisecond
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("manifest", "run_id cannot be empty")
	}
	if m.Fingerprint.GridHash == "" {
		return core.NewValidationError("manifest", "grid_hash cannot be empty")
	}
	if m.Fingerprint.ConstantsHash == "" {
		return core.NewValidationError("manifest", "constants_hash cannot be empty")
	}
	if m.Fingerprint.CodeVersion == "" {
		return core.NewValidationError("manifest", "code_version cannot be empty")
	}
	if m.Grid.Iterations <= 0 || len(m.Grid.SampleSizes) == 0 {
		return core.NewValidationError("manifest", "grid is empty")
	}
	return m.Fingerprint.Verify()
}

// WriteFile stores the manifest as indented JSON
func (m *Manifest) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadManifest loads a manifest written by WriteFile
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
