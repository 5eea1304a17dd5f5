// Package logs tails the daemon log file for CLI display.
//
// It reads with bounded memory, supports a negative offset for "last N
// lines", and polls for new lines in follow mode. Callers supply a context
// so polling stops cleanly when the CLI exits.
package logs
