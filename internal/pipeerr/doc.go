// Package pipeerr defines the severity taxonomy attached to every pipeline
// failure. Each executor branches on the severity field: the retry executor
// intercepts RETRYABLE, the fallback executor intercepts FALLBACK, the stage
// executor converts anything unclassified to CRITICAL, and the pipeline
// machine halts on CRITICAL while recording DEGRADED and RECOVERABLE.
package pipeerr
