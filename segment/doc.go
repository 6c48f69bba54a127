// Package segment turns a timed transcript into ordered, token-bounded
// segments and groups those segments into topical chapters.
//
// Segmentation is deterministic: the same transcript always yields the same
// segments and the same chapter boundaries. Sentences are never split across
// segments, and chapters partition the segment range with no gaps and no
// overlaps.
package segment
