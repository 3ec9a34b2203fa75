// Package memory is the long-term, semantically searched store of past
// exchanges.
//
// Records are global rather than session scoped, so a question asked in one
// session can recall an answer given in another. Records are append-only:
// nothing in this package updates or deletes them.
//
// Scores are cosine similarities in [-1, 1]; higher means more relevant.
package memory
