// Package daemon assembles the long-running easeld process: the queue store,
// the polling worker, and the HTTP API, guarded by a per-data-dir lock file
// so only one daemon serves a database at a time.
package daemon
