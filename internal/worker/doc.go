// Package worker hosts the daemon's polling loop. It recovers interrupted
// work at startup, drains the queue on a fixed interval or when kicked by the
// enqueue path, and keeps terminal queue history pruned.
package worker
