// Package provider defines the capability contracts implemented by the
// external text, speech, and image services, plus the shared cost tracker
// every client reports spend into. Concrete clients live in the
// subpackages; chain construction lives in provider/registry.
package provider
