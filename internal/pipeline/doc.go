// Package pipeline runs the puget stages over a working table.
//
// A Driver holds an ordered list of stages (merge, reconcile, cluster,
// link, store). Each stage takes the current table and returns the next
// one. The driver is the only writer of the working table.
//
// Run Flow:
// 1. A run id is drawn from the RunIDGenerator (UUIDv7 by default)
// 2. Stages run in declaration order; ctx is checked before each one
// 3. Every completed stage is stamped with a seq number from the Clock
// 4. The RunSummary is recorded through the RunRecorder, if any
//
// Stage failures are wrapped in a StageError naming the stage and run.
// Seq numbers, not wall-clock time, order the stages of a run.
package pipeline
