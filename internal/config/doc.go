// Package config loads, validates, and normalizes slidecast configuration
// from TOML files with sensible defaults for every setting.
package config
