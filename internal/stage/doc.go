// Package stage defines the closed set of pipeline stage identities, the
// fixed execution order, and the contract every stage handler implements.
// The order is a straight-line sequence with no branching, which is what
// makes resuming from an arbitrary stage well-defined.
package stage
