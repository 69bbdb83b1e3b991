package pairing

import (
	"fmt"
	"strings"
)

const outputExt = ".mp4"

// OutputFilename names the video for a run of pairs after its first and last
// image stems: "001-003.mp4", or "005.mp4" for a single pair.
func OutputFilename(pairs []Pair) string {
	if len(pairs) == 0 {
		return ""
	}
	first := pairs[0].Image.DisplayName
	if len(pairs) == 1 {
		return first + outputExt
	}
	return first + "-" + pairs[len(pairs)-1].Image.DisplayName + outputExt
}

// dedupeFilenames appends _2, _3, ... to names that collide case-insensitively
// with an earlier group, e.g. when two images share a stem but not an
// extension.
func dedupeFilenames(groups []Group) {
	seen := make(map[string]struct{}, len(groups))
	for i := range groups {
		name := groups[i].OutputFilename
		if _, taken := seen[strings.ToLower(name)]; taken {
			base := strings.TrimSuffix(name, outputExt)
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d%s", base, n, outputExt)
				if _, clash := seen[strings.ToLower(candidate)]; !clash {
					name = candidate
					break
				}
			}
			groups[i].OutputFilename = name
		}
		seen[strings.ToLower(name)] = struct{}{}
	}
}
