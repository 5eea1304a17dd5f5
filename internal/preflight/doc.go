// Package preflight audits presentation readiness: per-slide asset checks
// and the presentation-level intro video check are folded into one overall
// verdict with a fixed precedence, computed fresh from a snapshot of
// persisted state on every run.
package preflight
