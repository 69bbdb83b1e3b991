package pairing

import (
	"errors"

	"stillcut/internal/media"
	"stillcut/internal/services"
)

// Plan is the resolved outcome of pairing two folders.
type Plan struct {
	Images    []media.Entry
	Audios    []media.Entry
	Pairs     []Pair
	Groups    []Group
	Unmatched *UnmatchedFiles
}

// Resolve lists both folders, pairs and groups them. The mode is checked
// before any filesystem access. A folder without matching files is reported
// as EmptyInput while keeping NoMatchingFiles reachable via errors.Is.
func Resolve(imagesDir, audioDir string, mode Mode) (*Plan, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	images, err := media.List(imagesDir, media.KindImage)
	if err != nil {
		return nil, asEmptyInput(err)
	}
	audios, err := media.List(audioDir, media.KindAudio)
	if err != nil {
		return nil, asEmptyInput(err)
	}
	pairs, unmatched := MakePairs(images, audios)
	groups, err := MakeGroups(pairs, mode)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Images:    images,
		Audios:    audios,
		Pairs:     pairs,
		Groups:    groups,
		Unmatched: unmatched,
	}, nil
}

func asEmptyInput(err error) error {
	if errors.Is(err, services.ErrNoMatchingFiles) {
		return services.Wrap(services.ErrEmptyInput, "planner", "resolve", "nothing to pair", err)
	}
	return err
}
