// Package pairing turns ordered image and audio listings into pairs and
// groups of pairs, and names the video each group renders to.
//
// Pairing is positional: the i-th image goes with the i-th audio clip in
// natural sort order. Surplus files on the longer side are reported through
// UnmatchedFiles and never folded into a neighbouring pair. Grouping cuts the
// pair list into contiguous runs of a fixed size, or keeps it whole.
//
// Everything here is pure and deterministic so the same folders always
// produce the same plan, which the queue relies on when it stores groups at
// enqueue time.
package pairing
