package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// Exists reports whether path names an existing file or directory.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ErrDestinationExists is returned by MoveFileNoReplace when dst is taken.
var ErrDestinationExists = errors.New("destination already exists")

// MoveFile renames src to dst, replacing dst. When the two paths sit on
// different filesystems it falls back to a verified copy into a temporary
// sibling of dst which is then renamed into place, so dst is never left
// half-written.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	tmpPath, err := stageBeside(src, dst)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// MoveFileNoReplace moves src to dst but fails with ErrDestinationExists if
// dst exists at the moment of publication. The file is staged next to dst
// and hard-linked into place, which the kernel refuses when dst is present.
// src is consumed either way.
func MoveFileNoReplace(src, dst string) error {
	tmpPath, err := stageBeside(src, dst)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	err = os.Link(tmpPath, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
	case errors.Is(err, syscall.EPERM), errors.Is(err, syscall.ENOTSUP), errors.Is(err, syscall.EOPNOTSUPP):
		// No hard links on this filesystem.
		exists, statErr := Exists(dst)
		if statErr != nil {
			return statErr
		}
		if exists {
			return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
		}
		return os.Rename(tmpPath, dst)
	default:
		return err
	}
}

// stageBeside moves src to a hidden temporary sibling of dst and returns its
// path. src is consumed on success.
func stageBeside(src, dst string) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".part-*")
	if err != nil {
		return "", fmt.Errorf("create temp for move: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	err = os.Rename(src, tmpPath)
	if err == nil {
		return tmpPath, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := CopyFileVerified(src, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := RemoveIfExists(src); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on any failure.
func CopyFileVerified(src, dst string) (err error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
