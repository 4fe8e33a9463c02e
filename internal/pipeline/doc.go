// Package pipeline implements the run state machine. It drives the fixed
// stage order, persists progress after every stage, aggregates quality
// signals across the run, and supports resuming a persisted run from an
// arbitrary stage. Critical failures halt the run and hand the selected
// topic to the retry queue; everything milder is recorded and the run
// continues.
package pipeline
