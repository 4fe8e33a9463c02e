// Package qualitygate decides whether a finished pipeline run may be
// published automatically. The decision is a pure function over the
// quality signals accumulated across the run plus the presence of
// pending critical review items; it performs no I/O of its own.
package qualitygate
