package trace

import (
	"testing"
	"time"
)

func TestSimulationTrace_RecordEvaluation_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN an evaluation record is recorded
	st.RecordEvaluation(EvaluationRecord{
		AgentID:  3,
		At:       time.Unix(30, 0),
		From:     "Broadcast",
		To:       "PubSub",
		Switched: true,
		Rule:     "write-heavy",
	})

	// THEN the trace contains one record with correct data
	if len(st.Evaluations) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(st.Evaluations))
	}
	if st.Evaluations[0].AgentID != 3 {
		t.Errorf("expected agent 3, got %d", st.Evaluations[0].AgentID)
	}
	if st.Evaluations[0].To != "PubSub" {
		t.Errorf("expected PubSub, got %s", st.Evaluations[0].To)
	}
}

func TestSimulationTrace_LevelNone_RecordsNothing(t *testing.T) {
	// GIVEN a trace with tracing disabled
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelNone})

	// WHEN records are offered
	st.RecordEvaluation(EvaluationRecord{AgentID: 1, Switched: true})

	// THEN nothing is kept
	if len(st.Evaluations) != 0 {
		t.Errorf("expected 0 evaluations, got %d", len(st.Evaluations))
	}
}

func TestSimulationTrace_NilTrace_IsSafe(t *testing.T) {
	var st *SimulationTrace
	st.RecordEvaluation(EvaluationRecord{AgentID: 1})
	if st.Enabled() {
		t.Error("nil trace must report disabled")
	}
	if st.Switches() != nil {
		t.Error("nil trace must have no switches")
	}
}

func TestSimulationTrace_Switches_FiltersKeptDelegates(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})
	st.RecordEvaluation(EvaluationRecord{AgentID: 0, From: "Broadcast", To: "PubSub", Switched: true})
	st.RecordEvaluation(EvaluationRecord{AgentID: 0, From: "PubSub", To: "PubSub", Switched: false})

	switches := st.Switches()
	if len(switches) != 1 {
		t.Fatalf("expected 1 switch, got %d", len(switches))
	}
	if switches[0].To != "PubSub" {
		t.Errorf("expected switch to PubSub, got %s", switches[0].To)
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"none", true},
		{"decisions", true},
		{"", true},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := IsValidTraceLevel(tt.level); got != tt.want {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
