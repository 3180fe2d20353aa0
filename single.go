package libkit

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/gobeaver/libkit/filestore"
)

// SingleLibraryStorage serves the one library whose library.json sits at the
// root of its file store, such as a library repository checked out on its
// own. The record is read again on every lookup so edits take effect
// immediately.
//
// The storage is read-only.
type SingleLibraryStorage struct {
	lib      libraryDir
	logger   logrus.FieldLogger
	location string
}

// NewSingleLibraryStorage creates the storage. It fails with
// ErrInvalidLibraryDirectory when the root holds no library.json.
func NewSingleLibraryStorage(ctx context.Context, fs filestore.FileReader, opts ...StorageOption) (*SingleLibraryStorage, error) {
	o := applyStorageOptions(opts)
	lib := newLibraryDir(fs, "", o.ignore)

	exists, err := lib.hasMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("open single library storage %s: %w", o.location, err)
	}
	if !exists {
		return nil, fmt.Errorf("open single library storage %s: %w", o.location, ErrInvalidLibraryDirectory)
	}

	return &SingleLibraryStorage{
		lib:      lib,
		logger:   o.logger,
		location: o.location,
	}, nil
}

// Location returns the location the storage was configured with.
func (s *SingleLibraryStorage) Location() string {
	return s.location
}

// current reads the identity of the library currently in the directory.
func (s *SingleLibraryStorage) current(ctx context.Context) (LibraryName, error) {
	name, err := s.lib.name(ctx)
	if err != nil {
		return LibraryName{}, fmt.Errorf("read library in %s: %w", s.location, err)
	}
	return name, nil
}

func (s *SingleLibraryStorage) resolve(ctx context.Context, op string, name LibraryName) (libraryDir, error) {
	current, err := s.current(ctx)
	if err != nil {
		return libraryDir{}, &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}
	if !current.Equal(name) {
		return libraryDir{}, notInstalled(op, name, s.location)
	}
	return s.lib, nil
}

// LibraryExists implements LibraryStorage. Only an exact match of machine
// name, major and minor version counts.
func (s *SingleLibraryStorage) LibraryExists(ctx context.Context, name LibraryName) (bool, error) {
	current, err := s.current(ctx)
	if err != nil {
		return false, err
	}
	if !current.Equal(name) {
		s.logger.WithFields(logrus.Fields{
			"library":  name.UberName(),
			"holds":    current.UberName(),
			"location": s.location,
		}).Debug("single library storage holds a different library")
		return false, nil
	}
	return true, nil
}

// FileExists implements LibraryStorage.
func (s *SingleLibraryStorage) FileExists(ctx context.Context, name LibraryName, file string) (bool, error) {
	lib, err := s.resolve(ctx, "file exists", name)
	if err != nil {
		return false, err
	}
	return lib.fileExists(ctx, file)
}

// GetFileStream implements LibraryStorage.
func (s *SingleLibraryStorage) GetFileStream(ctx context.Context, name LibraryName, file string) (io.ReadCloser, error) {
	lib, err := s.resolve(ctx, "get file", name)
	if err != nil {
		return nil, err
	}
	return lib.open(ctx, file)
}

// ListFiles implements LibraryStorage.
func (s *SingleLibraryStorage) ListFiles(ctx context.Context, name LibraryName) ([]string, error) {
	lib, err := s.resolve(ctx, "list files", name)
	if err != nil {
		return nil, err
	}
	return lib.list(ctx)
}

// GetLanguageFiles implements LibraryStorage.
func (s *SingleLibraryStorage) GetLanguageFiles(ctx context.Context, name LibraryName) ([]string, error) {
	lib, err := s.resolve(ctx, "list language files", name)
	if err != nil {
		return nil, err
	}
	return lib.languageFiles(ctx)
}

// GetMetadata implements MetadataReader.
func (s *SingleLibraryStorage) GetMetadata(ctx context.Context, name LibraryName) (*LibraryMetadata, error) {
	lib, err := s.resolve(ctx, "get metadata", name)
	if err != nil {
		return nil, err
	}
	return lib.metadata(ctx)
}

// GetInstalled implements LibraryStorage.
func (s *SingleLibraryStorage) GetInstalled(ctx context.Context, machineNames ...string) ([]LibraryName, error) {
	current, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return filterByMachineName([]LibraryName{current}, machineNames), nil
}

// InstallLibrary always fails with ErrReadOnly.
func (s *SingleLibraryStorage) InstallLibrary(_ context.Context, metadata *LibraryMetadata, _ bool) (*InstalledLibrary, error) {
	return nil, s.readOnly("install", nameOf(metadata))
}

// UpdateLibrary always fails with ErrReadOnly.
func (s *SingleLibraryStorage) UpdateLibrary(_ context.Context, metadata *LibraryMetadata) (*InstalledLibrary, error) {
	return nil, s.readOnly("update", nameOf(metadata))
}

// RemoveLibrary always fails with ErrReadOnly.
func (s *SingleLibraryStorage) RemoveLibrary(_ context.Context, name LibraryName) error {
	return s.readOnly("remove", name)
}

// AddLibraryFile always fails with ErrReadOnly.
func (s *SingleLibraryStorage) AddLibraryFile(_ context.Context, name LibraryName, _ string, _ io.Reader) (bool, error) {
	return false, s.readOnly("add file", name)
}

// ClearLibraryFiles always fails with ErrReadOnly.
func (s *SingleLibraryStorage) ClearLibraryFiles(_ context.Context, name LibraryName) error {
	return s.readOnly("clear files", name)
}

func (s *SingleLibraryStorage) readOnly(op string, name LibraryName) error {
	return &LibraryError{Op: op, Library: name, Location: s.location, Err: ErrReadOnly}
}

var (
	_ LibraryStorage = (*SingleLibraryStorage)(nil)
	_ MetadataReader = (*SingleLibraryStorage)(nil)
)
