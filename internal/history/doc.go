// Package history owns the durable memory of past selections: an ordered,
// bounded log of what was posted on which day, plus the "already ran today"
// marker derived from it.
//
// It currently supports:
//   - A dependency-free JSON file backend (default)
//   - An optional SQLite backend (build with -tags sqlite)
//
// Corrupt or missing state always degrades to "no memory", never to a crash:
// durability loss must not block future runs.
package history
