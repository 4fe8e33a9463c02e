// Package notifications publishes pipeline lifecycle events to an ntfy
// topic. When no topic is configured every notification is a no-op, so
// callers never need to guard their publish calls.
package notifications
