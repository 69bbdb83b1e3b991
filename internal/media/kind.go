package media

import (
	"path/filepath"
	"slices"
	"strings"
)

// Kind tags a media file as image or audio.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

var extensionKinds = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".bmp":  KindImage,
	".tiff": KindImage,
	".gif":  KindImage,
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".aac":  KindAudio,
	".m4a":  KindAudio,
	".flac": KindAudio,
	".ogg":  KindAudio,
}

// KindForPath returns the kind for path based on its extension.
func KindForPath(path string) (Kind, bool) {
	kind, ok := extensionKinds[strings.ToLower(filepath.Ext(path))]
	return kind, ok
}

// Extensions returns the allow-listed extensions for kind.
func Extensions(kind Kind) []string {
	var exts []string
	for ext, k := range extensionKinds {
		if k == kind {
			exts = append(exts, ext)
		}
	}
	slices.Sort(exts)
	return exts
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImage || k == KindAudio
}

// Plural returns a label for messages ("image files", "audio files").
func (k Kind) Plural() string {
	return string(k) + " files"
}
