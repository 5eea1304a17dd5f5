// Package store manages slidecast persistence backed by SQLite:
// presentations moving through the pipeline, per-slide narratives and their
// generated assets, intro videos, and generation job records.
package store
