package libkit

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/gobeaver/libkit/filevalidator"
)

const (
	// MetadataFile is the metadata record at the root of every library directory.
	MetadataFile = "library.json"
	// LanguageDir holds a library's translation files.
	LanguageDir = "language"
)

// LibraryStorage is the capability every library storage, and the
// aggregate built from them, provides.
type LibraryStorage interface {
	// LibraryExists reports whether the storage holds the library.
	LibraryExists(ctx context.Context, name LibraryName) (bool, error)

	// FileExists reports whether the library contains file.
	FileExists(ctx context.Context, name LibraryName, file string) (bool, error)

	// GetFileStream opens a library file. Fails if the library or file is missing.
	GetFileStream(ctx context.Context, name LibraryName, file string) (io.ReadCloser, error)

	// ListFiles returns every library file relative to the library
	// directory, sorted, without ignored files.
	ListFiles(ctx context.Context, name LibraryName) ([]string, error)

	// GetLanguageFiles returns the file names inside the language directory.
	GetLanguageFiles(ctx context.Context, name LibraryName) ([]string, error)

	// GetInstalled lists the libraries held, optionally only those with one
	// of the given machine names.
	GetInstalled(ctx context.Context, machineNames ...string) ([]LibraryName, error)

	// InstallLibrary registers a new library from its metadata.
	InstallLibrary(ctx context.Context, metadata *LibraryMetadata, restricted bool) (*InstalledLibrary, error)

	// UpdateLibrary replaces the metadata of an installed library.
	UpdateLibrary(ctx context.Context, metadata *LibraryMetadata) (*InstalledLibrary, error)

	// RemoveLibrary deletes the library and all its files.
	RemoveLibrary(ctx context.Context, name LibraryName) error

	// AddLibraryFile stores a file of an installed library.
	AddLibraryFile(ctx context.Context, name LibraryName, file string, r io.Reader) (bool, error)

	// ClearLibraryFiles removes every file of the library except its metadata.
	ClearLibraryFiles(ctx context.Context, name LibraryName) error
}

// MetadataReader is implemented by storages that can return the full
// library.json of a library.
type MetadataReader interface {
	GetMetadata(ctx context.Context, name LibraryName) (*LibraryMetadata, error)
}

// StorageOption configures the directory based storages.
type StorageOption func(*storageOptions)

type storageOptions struct {
	logger   logrus.FieldLogger
	ignore   *IgnoreMatcher
	location string
	files    *filevalidator.NameValidator
}

// WithLogger sets the logger used for debug output of scans and lookups.
func WithLogger(logger logrus.FieldLogger) StorageOption {
	return func(o *storageOptions) {
		o.logger = logger
	}
}

// WithIgnorePatterns replaces DefaultIgnorePatterns.
func WithIgnorePatterns(m *IgnoreMatcher) StorageOption {
	return func(o *storageOptions) {
		o.ignore = m
	}
}

// WithLocation sets the human readable location used in errors and logs,
// typically the directory the file store is rooted at.
func WithLocation(location string) StorageOption {
	return func(o *storageOptions) {
		o.location = location
	}
}

// WithFileValidator makes writable storages refuse library files whose name
// the validator rejects.
func WithFileValidator(v *filevalidator.NameValidator) StorageOption {
	return func(o *storageOptions) {
		o.files = v
	}
}

func applyStorageOptions(opts []StorageOption) storageOptions {
	o := storageOptions{
		logger: discardLogger(),
		ignore: MustIgnoreMatcher(DefaultIgnorePatterns...),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
