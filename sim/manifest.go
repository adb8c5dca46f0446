package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/coherence-sim/coherence-sim/sim/trace"
)

// RunManifest records what was run: the resolved configuration keyed by
// run id, plus an execution id distinguishing repeated runs of one config.
// Written once at FINALIZE and never modified.
type RunManifest struct {
	RunID       string                   `json:"run_id"`
	ExecutionID string                   `json:"execution_id"`
	StartedAt   time.Time                `json:"started_at"`
	FinishedAt  time.Time                `json:"finished_at"`
	Config      Config                   `json:"cfg"`
	Summary     RunSummary               `json:"summary"`
	Switches    []trace.EvaluationRecord `json:"switches"`
	Decisions   *trace.TraceSummary      `json:"decisions,omitempty"` // nil when tracing is off
}

// NewRunManifest creates a manifest for cfg with a fresh execution id.
func NewRunManifest(cfg Config, startedAt time.Time) *RunManifest {
	return &RunManifest{
		RunID:       cfg.RunID,
		ExecutionID: uuid.NewString(),
		StartedAt:   startedAt,
		Config:      cfg,
		Switches:    []trace.EvaluationRecord{},
	}
}

// Write persists the manifest as indented JSON at path.
func (m *RunManifest) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// ReadRunManifest loads a manifest written by Write.
func ReadRunManifest(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return &m, nil
}
