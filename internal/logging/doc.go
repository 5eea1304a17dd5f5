// Package logging provides slog logger construction and shared attribute
// helpers used across slidecast components.
package logging
