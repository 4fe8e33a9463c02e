// Package logging provides the structured slog setup shared across
// showrunner: standardized field names, context-derived attributes (run
// date, stage, correlation id), and console/JSON handler construction.
package logging
