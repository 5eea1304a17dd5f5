// Package narration imports externally produced slide narration into the
// store. Narration is authored outside the pipeline (scripts and synthesized
// audio); this package parses the TOML hand-off document and records one
// narrative row per slide, which releases the presentation into the
// generation stage.
package narration
