package dependency

import (
	"io"
	"os"
	"path/filepath"
)

// ReadAtCloser is the byte source the metadata reader needs.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// AssemblyFile is an input binary. The finder depends only on this
// capability set, not on how files were discovered.
type AssemblyFile interface {
	// Name is the logical name used in messages and error lists.
	Name() string
	Exists() bool
	// Version is the file version when known without reading metadata.
	Version() string
	OpenRead() (ReadAtCloser, error)
	// PackageSubstitutable opts the assembly in to package replacement.
	PackageSubstitutable() bool
	// Explicit reports whether the user named the file directly.
	Explicit() bool
}

// FileSource is an AssemblyFile on the local file system.
type FileSource struct {
	Path          string
	IsExplicit    bool
	Substitutable bool
}

// Name returns the path as given.
func (f FileSource) Name() string {
	return f.Path
}

// Exists reports whether the path is a regular file.
func (f FileSource) Exists() bool {
	info, err := os.Stat(f.Path)
	return err == nil && info.Mode().IsRegular()
}

// Version is empty; the file version resource is not read.
func (f FileSource) Version() string {
	return ""
}

// OpenRead opens the file for random access.
func (f FileSource) OpenRead() (ReadAtCloser, error) {
	return os.Open(f.Path)
}

func (f FileSource) PackageSubstitutable() bool {
	return f.Substitutable
}

func (f FileSource) Explicit() bool {
	return f.IsExplicit
}

// Size returns the file size in bytes.
func (f FileSource) Size() (int64, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Location returns the absolute path when it can be determined.
func (f FileSource) Location() string {
	if abs, err := filepath.Abs(f.Path); err == nil {
		return abs
	}
	return f.Path
}
