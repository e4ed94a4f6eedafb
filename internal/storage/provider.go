// Package storage defines the transcripts-folder file-system abstraction.
package storage

import "time"

// FileMeta describes one transcript file found under the root.
type FileMeta struct {
	Path      string // slash-separated, relative to the root
	Checksum  string
	Size      int64
	UpdatedAt time.Time
}

// Provider is the interface for transcript folder operations.
type Provider interface {
	// List returns metadata for every file under the root whose relative
	// path matches one of the include globs.
	List(include []string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Root returns the absolute root directory.
	Root() string
}
