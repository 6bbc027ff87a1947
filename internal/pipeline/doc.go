// Package pipeline runs queued generation requests to completion. It claims
// items through the queue's heartbeat locks, drives the external generator
// through the reference fallback cascade, and records terminal outcomes on
// both the queue item and its generation record.
package pipeline
