// Package store owns the shared SQLite database backing all durable
// pipeline state: pipeline runs, queued topics, and review items. The
// component stores (pipeline, topicqueue, review) each own their table
// through a shared *store.DB handle threaded in explicitly; there is no
// process-wide singleton connection.
package store
