// Package config loads, validates, and defaults easel's TOML configuration.
package config
