// Package sim provides the core engine of the context-coherence benchmark.
//
// # Reading Guide
//
// Start with these three files to understand one run:
//   - strategy.go: the Strategy interface and the five coherence variants
//   - agent.go: an Agent issuing one operation at a time and the OpResult record
//   - runner.go: the INIT → WARMUP → MEASURE → COOLDOWN → FINALIZE lifecycle
//
// # Architecture
//
// Every run owns its collaborators; nothing is shared between runs:
//   - ContextStore: authoritative, versioned key → ContextItem map
//   - MessageRouter: per-agent mailboxes, topic subscriptions, a fixed
//     propagation delay charged on the publisher
//   - GroupCaches: the L2 level shared by agents with equal id mod group_mod
//   - Metrics: the OpSink persisting the operation log and resource samples
//
// Sub-packages:
//   - sim/workload/: operation-kind generators and key access samplers
//   - sim/trace/: HybridAdaptive decision records
//   - sim/telemetry/: Prometheus export of live operations (imports sim)
//
// # Time
//
// All timing reads an injected Clock. ManualClock turns every Sleep into an
// instant advance of virtual time, which makes runs fast and reproducible in
// tests.
package sim
