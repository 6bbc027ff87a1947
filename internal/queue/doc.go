// Package queue persists generation work in SQLite: the queue items the
// worker drains, the heartbeat-leased locks that make claiming safe across
// concurrent workers, and the generation records that carry each request's
// outcome. The database file is the source of truth; crash recovery is a
// sweep over its rows at startup.
package queue
