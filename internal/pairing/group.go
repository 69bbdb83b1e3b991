package pairing

import (
	"fmt"
	"strconv"
	"strings"

	"stillcut/internal/services"
)

// Mode selects how pairs are partitioned. All wins over Size.
type Mode struct {
	Size int
	All  bool
}

// BySize returns a mode cutting pairs into groups of n.
func BySize(n int) Mode { return Mode{Size: n} }

// All returns the single-group mode.
func All() Mode { return Mode{All: true} }

// ParseMode accepts "all" or a decimal group size.
func ParseMode(value string) (Mode, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "all") {
		return All(), nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return Mode{}, services.Wrap(services.ErrInvalidGroupSize, "grouper", "parse mode",
			fmt.Sprintf("group size %q is neither a number nor \"all\"", value), nil)
	}
	mode := BySize(n)
	if err := mode.Validate(); err != nil {
		return Mode{}, err
	}
	return mode, nil
}

// Validate rejects sizes below one.
func (m Mode) Validate() error {
	if m.All {
		return nil
	}
	if m.Size < 1 {
		return services.Wrap(services.ErrInvalidGroupSize, "grouper", "validate mode",
			fmt.Sprintf("group size must be at least 1, got %d", m.Size), nil)
	}
	return nil
}

func (m Mode) String() string {
	if m.All {
		return "all"
	}
	return strconv.Itoa(m.Size)
}

// Group is a contiguous, non-empty run of pairs rendered into one video.
type Group struct {
	Pairs          []Pair
	OutputFilename string
}

// Label returns the identifying filenames used in logs, for example
// "001.jpg..003.jpg".
func (g Group) Label() string {
	if len(g.Pairs) == 0 {
		return ""
	}
	first := g.Pairs[0].Image.Name()
	if len(g.Pairs) == 1 {
		return first
	}
	return first + ".." + g.Pairs[len(g.Pairs)-1].Image.Name()
}

// MakeGroups partitions pairs according to mode. The last group of a sized
// mode may be shorter. Output filenames are unique within the result.
func MakeGroups(pairs []Pair, mode Mode) ([]Group, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, services.Wrap(services.ErrEmptyInput, "grouper", "group", "no image/audio pairs to render", nil)
	}

	size := mode.Size
	if mode.All {
		size = len(pairs)
	}
	groups := make([]Group, 0, (len(pairs)+size-1)/size)
	for start := 0; start < len(pairs); start += size {
		end := min(start+size, len(pairs))
		chunk := pairs[start:end:end]
		groups = append(groups, Group{Pairs: chunk, OutputFilename: OutputFilename(chunk)})
	}
	dedupeFilenames(groups)
	return groups, nil
}
