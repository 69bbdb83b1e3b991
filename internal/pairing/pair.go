package pairing

import (
	"fmt"
	"strings"

	"stillcut/internal/media"
)

// Pair couples one image with one audio clip. Index is the 0-based position
// within the full pairing.
type Pair struct {
	Index int
	Image media.Entry
	Audio media.Entry
}

// UnmatchedFiles lists surplus entries dropped by MakePairs. It is a warning,
// not an error.
type UnmatchedFiles struct {
	Kind  media.Kind
	Files []string
}

func (u *UnmatchedFiles) String() string {
	if u == nil || len(u.Files) == 0 {
		return ""
	}
	noun := "files"
	if len(u.Files) == 1 {
		noun = "file"
	}
	return fmt.Sprintf("%d unmatched %s %s dropped: %s", len(u.Files), u.Kind, noun, strings.Join(u.Files, ", "))
}

// MakePairs zips images and audios in order, truncating to the shorter list.
// Surplus entries are returned as UnmatchedFiles; nil means both lists had
// the same length.
func MakePairs(images, audios []media.Entry) ([]Pair, *UnmatchedFiles) {
	n := min(len(images), len(audios))
	pairs := make([]Pair, n)
	for i := range n {
		pairs[i] = Pair{Index: i, Image: images[i], Audio: audios[i]}
	}

	var surplus []media.Entry
	kind := media.KindImage
	switch {
	case len(images) > n:
		surplus = images[n:]
	case len(audios) > n:
		surplus = audios[n:]
		kind = media.KindAudio
	}
	if len(surplus) == 0 {
		return pairs, nil
	}
	unmatched := &UnmatchedFiles{Kind: kind, Files: make([]string, len(surplus))}
	for i, entry := range surplus {
		unmatched.Files[i] = entry.Name()
	}
	return pairs, unmatched
}
