// Package generation tracks long-running external generation jobs (avatar
// clips, intro videos, final renders) through an explicit bounded state
// machine with polling, per-kind timeouts, and cooperative cancellation.
package generation
