package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"stillcut/internal/naturalsort"
	"stillcut/internal/services"
)

// Entry is one listed media file. Entries are immutable once listed.
type Entry struct {
	Path        string
	DisplayName string
	SortKey     naturalsort.Key
	Kind        Kind
}

// Name returns the base file name including its extension.
func (e Entry) Name() string {
	return filepath.Base(e.Path)
}

// NewEntry builds an entry for path without touching the filesystem.
func NewEntry(path string, kind Kind) Entry {
	name := filepath.Base(path)
	return Entry{
		Path:        path,
		DisplayName: strings.TrimSuffix(name, filepath.Ext(name)),
		SortKey:     naturalsort.KeyOf(name),
		Kind:        kind,
	}
}

// List scans dir non-recursively and returns the files of the requested kind
// in natural sort order.
func List(dir string, kind Kind) ([]Entry, error) {
	if !kind.Valid() {
		return nil, services.Wrap(services.ErrValidation, "lister", "scan", fmt.Sprintf("unknown media kind %q", kind), nil)
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrDirectoryNotFound, "lister", "scan", fmt.Sprintf("%s does not exist", dir), nil)
		}
		return nil, services.Wrap(services.ErrDirectoryNotFound, "lister", "scan", fmt.Sprintf("cannot access %s", dir), err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrDirectoryNotFound, "lister", "scan", fmt.Sprintf("%s is not a directory", dir), nil)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrDirectoryNotFound, "lister", "scan", fmt.Sprintf("cannot read %s", dir), err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if isHidden(name) {
			continue
		}
		path := filepath.Join(dir, name)
		if !isRegularFile(path, dirEntry) {
			continue
		}
		if k, ok := KindForPath(name); !ok || k != kind {
			continue
		}
		entries = append(entries, NewEntry(path, kind))
	}

	if len(entries) == 0 {
		if len(dirEntries) == 0 {
			return nil, services.Wrap(services.ErrNoMatchingFiles, "lister", "scan", fmt.Sprintf("%s is empty", dir), nil)
		}
		return nil, services.Wrap(services.ErrNoMatchingFiles, "lister", "scan",
			fmt.Sprintf("%s has no %s (%s)", dir, kind.Plural(), strings.Join(Extensions(kind), " ")), nil)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return a.SortKey.Compare(b.SortKey)
	})
	return entries, nil
}

func isHidden(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch strings.ToLower(name) {
	case "thumbs.db", "desktop.ini":
		return true
	}
	return false
}

func isRegularFile(path string, entry fs.DirEntry) bool {
	mode := entry.Type()
	if mode.IsRegular() {
		return true
	}
	if mode&fs.ModeSymlink == 0 {
		return false
	}
	target, err := os.Stat(path)
	return err == nil && target.Mode().IsRegular()
}
