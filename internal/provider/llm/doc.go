// Package llm implements the primary text-generation client against an
// OpenRouter-compatible chat completion API. The client performs exactly
// one attempt per call and classifies every failure, leaving retry and
// provider fallback to the executors that wrap it.
package llm
