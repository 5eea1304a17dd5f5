// Package generator implements the generation stage of the pipeline. For
// every slide with a narrative and synthesized audio it submits an avatar
// video job to the generative provider, then submits the presentation-level
// intro job when enabled, and blocks until every tracked job reaches a
// terminal state.
package generator
