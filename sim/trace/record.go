// Package trace provides decision-trace recording for adaptive strategy analysis.
// This package has no dependencies on sim/. It stores plain data types.
package trace

import "time"

// EvaluationRecord captures a single HybridAdaptive delegate evaluation.
type EvaluationRecord struct {
	AgentID    int       `json:"agent_id"`
	At         time.Time `json:"at"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Switched   bool      `json:"switched"` // false when the selection kept the current delegate
	Rule       string    `json:"rule"`     // which selection rule fired
	ReadRatio  float64   `json:"read_ratio"`
	Observed   bool      `json:"observed"` // ReadRatio measured from traffic rather than the configured hint
	AgentCount int       `json:"agent_count"`
	AccessSkew float64   `json:"access_skew"`
}
