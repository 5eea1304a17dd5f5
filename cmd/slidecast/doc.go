// Command slidecast is the operator CLI for the slidecast pipeline. It
// registers slide decks, inspects pipeline and generation job state, runs
// preflight readiness audits, and manages configuration. Commands operate on
// the shared SQLite database; the daemon (slidecastd) performs the actual
// processing.
package main
