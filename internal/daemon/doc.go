// Package daemon coordinates the long-running slidecast process.
//
// It wires configuration, the store, the generation job tracker, and the
// workflow manager into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon also exposes registration and
// maintenance helpers shared by the CLI.
//
// Keep orchestration logic here: individual pipeline stages live in their
// respective packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
