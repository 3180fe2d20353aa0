package libkit

import (
	"errors"
	"fmt"

	"github.com/gobeaver/libkit/filestore"
)

// Library storage errors
var (
	// ErrNotInstalled is returned when no consulted storage holds the library.
	ErrNotInstalled = errors.New("library not installed")
	// ErrMalformedMetadata is returned when a library.json cannot be decoded.
	// Directory scans treat it as a non-match instead of failing.
	ErrMalformedMetadata = errors.New("malformed library metadata")
	// ErrInvalidLibraryDirectory is returned when a directory that must hold
	// exactly one library has no library.json.
	ErrInvalidLibraryDirectory = errors.New("directory does not contain a library")
	// ErrAlreadyInstalled is returned when installing over an existing library.
	ErrAlreadyInstalled = errors.New("library already installed")
	// ErrIgnoredFile is returned for files matching an ignore pattern.
	ErrIgnoredFile = errors.New("file is not library content")
	// ErrInvalidUberName is returned for names that cannot form an uber-name.
	ErrInvalidUberName = errors.New("invalid library name")
	// ErrReadOnly is returned by storages that never accept writes.
	ErrReadOnly = filestore.ErrReadOnly
)

// LibraryError records a failed operation on a library and where it was looked up.
type LibraryError struct {
	Op       string
	Library  LibraryName
	Location string
	Err      error
}

// Error implements the error interface
func (e *LibraryError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Library.UberName(), e.Err)
	}
	return fmt.Sprintf("%s %s in %s: %v", e.Op, e.Library.UberName(), e.Location, e.Err)
}

// Unwrap returns the underlying error
func (e *LibraryError) Unwrap() error {
	return e.Err
}

// IsNotInstalled reports whether err means the library could not be found.
func IsNotInstalled(err error) bool {
	return errors.Is(err, ErrNotInstalled)
}

// errNoMetadata is returned when a write is attempted without a library.json record.
var errNoMetadata = fmt.Errorf("%w: no metadata given", ErrMalformedMetadata)

// nameOf returns the identity carried by metadata, or the zero name.
func nameOf(metadata *LibraryMetadata) LibraryName {
	if metadata == nil {
		return LibraryName{}
	}
	return metadata.LibraryName
}

func notInstalled(op string, name LibraryName, location string) error {
	return &LibraryError{Op: op, Library: name, Location: location, Err: ErrNotInstalled}
}
