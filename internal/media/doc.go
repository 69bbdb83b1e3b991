// Package media lists the still images and audio clips a job is built from.
//
// A static extension allow-list maps each file to a Kind; List scans one
// directory without recursing, skips hidden entries and sub-directories and
// returns entries in natural sort order so pairing stays deterministic.
// Failures carry the DirectoryNotFound or NoMatchingFiles markers from the
// services package.
package media
