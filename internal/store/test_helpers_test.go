package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/nodegraph/internal/ir"
)

// createTestStore opens a fresh store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds a run with one succeeded and one failed task.
func createTestRun(id string) RunRecord {
	return RunRecord{
		ID:       id,
		PlanHash: "plan-hash",
		Mode:     "sequential",
		Policy:   "abort",
		Status:   "failed",
		Tasks:    2,
		Failed:   1,
		Results: []TaskRecord{
			{Position: 0, Kind: "node", Label: "C", Layer: 0, Status: "succeeded", Outputs: ir.IRObject{"value": ir.IRInt(1)}},
			{Position: 1, Kind: "compiled", Label: "ab", Layer: 1, Status: "failed", Outputs: ir.IRObject{}, Error: "boom"},
		},
	}
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
