// Package renderer implements the rendering stage of the pipeline. It reads
// the registered presentation document, rasterizes every slide through the
// configured backend priority list, and writes the per-slide PNGs under the
// render directory.
package renderer
