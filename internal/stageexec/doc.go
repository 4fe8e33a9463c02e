// Package stageexec runs a single pipeline stage: it times the
// execution, accounts provider spend through an injected cost tracker,
// captures the quality signals the stage reports, and classifies any
// failure before it can escape the stage boundary. It deliberately never
// retries or falls back; that belongs to the code a stage calls
// internally, so stages without provider calls pay no retry overhead.
package stageexec
