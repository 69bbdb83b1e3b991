package naturalsort

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key is the precomputed ordering key for one name.
type Key struct {
	raw      string
	segments []segment
}

type segment struct {
	raw     string
	folded  string
	digits  string
	numeric bool
}

// KeyOf splits name into alternating digit and text segments.
func KeyOf(name string) Key {
	key := Key{raw: name}
	if name == "" {
		return key
	}
	folder := cases.Fold()
	start := 0
	numeric := isDigit(name[0])
	flush := func(end int) {
		run := name[start:end]
		seg := segment{raw: run, numeric: numeric}
		if numeric {
			seg.digits = strings.TrimLeft(run, "0")
		} else {
			seg.folded = folder.String(norm.NFC.String(run))
		}
		key.segments = append(key.segments, seg)
	}
	for i := 1; i < len(name); i++ {
		if isDigit(name[i]) != numeric {
			flush(i)
			start = i
			numeric = !numeric
		}
	}
	flush(len(name))
	return key
}

// String returns the name the key was built from.
func (k Key) String() string { return k.raw }

// Compare returns -1, 0 or +1 ordering k relative to other.
func (k Key) Compare(other Key) int {
	n := min(len(k.segments), len(other.segments))
	for i := 0; i < n; i++ {
		if c := compareSegment(k.segments[i], other.segments[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k.segments) < len(other.segments):
		return -1
	case len(k.segments) > len(other.segments):
		return 1
	}
	return strings.Compare(k.raw, other.raw)
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return KeyOf(a).Compare(KeyOf(b)) < 0
}

// Sort orders names in place.
func Sort(names []string) {
	keys := make(map[string]Key, len(names))
	for _, name := range names {
		if _, ok := keys[name]; !ok {
			keys[name] = KeyOf(name)
		}
	}
	slices.SortStableFunc(names, func(a, b string) int {
		return keys[a].Compare(keys[b])
	})
}

func compareSegment(a, b segment) int {
	switch {
	case a.numeric && b.numeric:
		return compareDigits(a.digits, b.digits)
	case !a.numeric && !b.numeric:
		return strings.Compare(a.folded, b.folded)
	default:
		return strings.Compare(a.raw, b.raw)
	}
}

// compareDigits orders two digit strings without leading zeros by value.
func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
