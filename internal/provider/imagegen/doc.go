// Package imagegen implements the visual-generation provider chain: a
// generative image API as primary, a stock-photo search as first
// fallback, and a local template renderer as the last resort that can
// never fail for network reasons.
package imagegen
