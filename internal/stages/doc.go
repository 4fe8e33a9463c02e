// Package stages implements the handlers behind each pipeline stage.
// Handlers stay thin: capability calls go through the provider chains
// with per-provider retry, quality signals are reported through the stage
// output envelope, and anything needing human judgment lands on the
// review queue.
package stages
