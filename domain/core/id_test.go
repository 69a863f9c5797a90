package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to report IsEmpty() = true")
	}
	if ID("run-1").IsEmpty() {
		t.Error("Expected non-empty ID to report IsEmpty() = false")
	}
}

func TestParseRunID(t *testing.T) {
	if _, err := ParseRunID("   "); err == nil {
		t.Error("Expected error for blank run ID")
	}
	id, err := ParseRunID("run-42")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id.String() != "run-42" {
		t.Errorf("Expected run-42, got %s", id)
	}
}

func TestNewCellKey_Stable(t *testing.T) {
	// Cell keys seed the per-cell random streams; the format is load-bearing.
	if got := NewCellKey(200, 7).String(); got != "n=200/iter=7" {
		t.Errorf("Unexpected cell key format: %s", got)
	}
	if NewCellKey(200, 7) == NewCellKey(7, 200) {
		t.Error("Cell keys must distinguish sample size from iteration")
	}
}
