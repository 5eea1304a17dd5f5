// Package rendering converts presentation documents into per-slide raster
// images through pluggable backends. A selector walks a configured priority
// list and returns the first available backend; strategy instances are
// presentation-scoped and acquired through a helper that guarantees cleanup
// on every exit path.
package rendering
