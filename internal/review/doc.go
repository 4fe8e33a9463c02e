// Package review persists items that need a human decision before the
// pipeline may publish. Items resolve exactly once: pending to resolved or
// dismissed, never back. Only pronunciation and quality items block
// automatic publication; controversial and topic items are informational.
package review
