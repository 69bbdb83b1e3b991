// Package naturalsort orders file names the way people read them: runs of
// ASCII digits compare by integer value, everything else compares as text.
//
// Keys are precomputed once per name so sorting large listings does not
// re-split strings on every comparison. Text segments are compared after
// Unicode NFC normalization and case folding, which is locale independent;
// the raw name breaks any remaining tie so the order stays total.
package naturalsort
