// Package composer implements the final composition stage of the pipeline.
// It hands the generated per-slide videos, audio tracks, and the optional
// intro video to the composition provider as one render job and records the
// published final video locator.
package composer
