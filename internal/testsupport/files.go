package testsupport

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteImage encodes a solid-colour image at path. The format follows the
// file extension.
func WriteImage(t testing.TB, path string, width, height int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	img := imaging.New(width, height, color.NRGBA{R: 0x30, G: 0x60, B: 0x90, A: 0xff})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save image %s: %v", path, err)
	}
}

// WriteMediaSet creates a folder of images and a folder of placeholder
// audio files. Image content is real; audio files only carry bytes.
func WriteMediaSet(t testing.TB, base string, images, audios []string) (imagesDir, audioDir string) {
	t.Helper()

	imagesDir = filepath.Join(base, "images")
	audioDir = filepath.Join(base, "audio")
	for _, dir := range []string{imagesDir, audioDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	for _, name := range images {
		WriteImage(t, filepath.Join(imagesDir, name), 32, 24)
	}
	for _, name := range audios {
		WriteFile(t, filepath.Join(audioDir, name), 64)
	}
	return imagesDir, audioDir
}

// ImageBounds decodes path and returns its dimensions.
func ImageBounds(t testing.TB, path string) image.Rectangle {
	t.Helper()

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	return img.Bounds()
}
