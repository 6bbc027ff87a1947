// Package logging centralizes slog construction and the attribute helpers
// shared by the daemon's components.
package logging
