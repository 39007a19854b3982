// Package ift implements the core of an Incremental Font Transfer client
// and encoder: the on-disk patch-map table format, the glyph-keyed binary
// patch applier, and the glyph segmentation planner that produces patch
// assignments for a font's codepoint segments.
//
// The package ties together four sub-packages, each implementing one piece
// of the system: patchmap (the table model and its format 2 wire codec),
// sfntfont (the SFNT container helper), glyfpatch (the patch applier), and
// segmenter (the segmentation planner). sparsebitset and ifterrors are
// shared support packages.
package ift
