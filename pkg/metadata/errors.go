package metadata

import "errors"

var (
	// ErrNotManagedAssembly reports a file that is not a PE image or has no
	// CLI header.
	ErrNotManagedAssembly = errors.New("not a managed assembly")
	// ErrTruncated reports a structure that extends past the end of its data.
	ErrTruncated = errors.New("truncated metadata")
	// ErrMalformed reports a structure with invalid contents.
	ErrMalformed = errors.New("malformed metadata")
	// ErrNoAssembly reports a module without an Assembly row (a netmodule).
	ErrNoAssembly = errors.New("module has no assembly manifest")
)

// ErrBadSignature reports a signature blob that cannot be decoded.
var ErrBadSignature = errors.New("bad signature blob")
