package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every adaptive delegate evaluation.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a run.
// Not thread-safe: a run issues operations from a single goroutine.
type SimulationTrace struct {
	Config      TraceConfig
	Evaluations []EvaluationRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:      config,
		Evaluations: make([]EvaluationRecord, 0),
	}
}

// Enabled reports whether records are being kept.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordEvaluation appends an evaluation record. No-op when tracing is disabled.
func (st *SimulationTrace) RecordEvaluation(record EvaluationRecord) {
	if !st.Enabled() {
		return
	}
	st.Evaluations = append(st.Evaluations, record)
}

// Switches returns only the evaluations that replaced the delegate.
func (st *SimulationTrace) Switches() []EvaluationRecord {
	if st == nil {
		return nil
	}
	var out []EvaluationRecord
	for _, e := range st.Evaluations {
		if e.Switched {
			out = append(out, e)
		}
	}
	return out
}
