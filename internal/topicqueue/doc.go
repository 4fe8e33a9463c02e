// Package topicqueue persists topics whose pipeline run failed critically so
// a later run can retry them. Entries are keyed by the target retry date
// (the day after the failure), so at most one queued topic exists per future
// date.
//
// The read-modify-write operations here have no transactional isolation:
// exactly one pipeline run and one operator are assumed per day. If
// concurrent writers ever become possible these operations need the
// backend's compare-and-swap before that assumption is relaxed.
package topicqueue
