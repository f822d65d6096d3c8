// Package service schedules engine runs and publishes their reports.
//
// Overview
// The Supervisor owns an event loop and a list of Jobs. A start trigger,
// fired once in manual mode or by gocron in timer mode, starts a round: every
// Job is handed to the Runner in order, one at a time. A trigger received
// while a round is still running is dropped.
//
// Runner is a thin wrapper around an Executor (process.Orchestrator in
// production):
//   - guards a single active run
//   - runs it in a goroutine under a cancellable context
//   - parses the engine report of a successful run
//   - exposes a channel of Result values
//
// Data flow:
//
//	Supervisor             Runner                  Executor
//	    |                     |                       |
//	start() -> round -------->| Start(job) ---------->| Execute(spec)
//	    |                     |                       | launch, pump, await
//	    |                     |<------ Outcome -------| (engine finished)
//	    |<------ Result ------|                       |
//	Publisher: history + uploaders
//
// Invariants:
//   - At most one active run per Runner.
//   - Each run produces exactly one Result, delivered in start order.
//   - Reports are uploaded only for runs classified as succeeded.
//   - Every run started with a history store attached is finished there too.
package service
