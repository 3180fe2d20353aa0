package libkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/gobeaver/libkit/filestore"
	"github.com/gobeaver/libkit/filevalidator"
	"github.com/gobeaver/libkit/internal/logging"
)

// DirectoryStorage keeps every library in a directory named after its
// uber-name ("H5P.Blanks-1.12"). It is the usual write target of an
// aggregate.
type DirectoryStorage struct {
	fs       filestore.FileSystem
	ignore   *IgnoreMatcher
	logger   logrus.FieldLogger
	location string
	files    *filevalidator.NameValidator
}

// NewDirectoryStorage creates a storage keeping libraries at the root of fs.
func NewDirectoryStorage(fs filestore.FileSystem, opts ...StorageOption) *DirectoryStorage {
	o := applyStorageOptions(opts)
	return &DirectoryStorage{
		fs:       fs,
		ignore:   o.ignore,
		logger:   o.logger,
		location: o.location,
		files:    o.files,
	}
}

// Location returns the location the storage was configured with.
func (s *DirectoryStorage) Location() string {
	return s.location
}

func (s *DirectoryStorage) dir(name LibraryName) libraryDir {
	return newLibraryDir(s.fs, name.UberName(), s.ignore)
}

func (s *DirectoryStorage) installed(ctx context.Context, op string, name LibraryName) (libraryDir, error) {
	lib := s.dir(name)
	exists, err := lib.hasMetadata(ctx)
	if err != nil {
		return libraryDir{}, &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}
	if !exists {
		return libraryDir{}, notInstalled(op, name, s.location)
	}
	return lib, nil
}

// LibraryExists implements LibraryStorage.
func (s *DirectoryStorage) LibraryExists(ctx context.Context, name LibraryName) (bool, error) {
	return s.dir(name).hasMetadata(ctx)
}

// FileExists implements LibraryStorage.
func (s *DirectoryStorage) FileExists(ctx context.Context, name LibraryName, file string) (bool, error) {
	lib, err := s.installed(ctx, "file exists", name)
	if err != nil {
		return false, err
	}
	return lib.fileExists(ctx, file)
}

// GetFileStream implements LibraryStorage.
func (s *DirectoryStorage) GetFileStream(ctx context.Context, name LibraryName, file string) (io.ReadCloser, error) {
	lib, err := s.installed(ctx, "get file", name)
	if err != nil {
		return nil, err
	}
	return lib.open(ctx, file)
}

// ListFiles implements LibraryStorage.
func (s *DirectoryStorage) ListFiles(ctx context.Context, name LibraryName) ([]string, error) {
	lib, err := s.installed(ctx, "list files", name)
	if err != nil {
		return nil, err
	}
	return lib.list(ctx)
}

// GetLanguageFiles implements LibraryStorage.
func (s *DirectoryStorage) GetLanguageFiles(ctx context.Context, name LibraryName) ([]string, error) {
	lib, err := s.installed(ctx, "list language files", name)
	if err != nil {
		return nil, err
	}
	return lib.languageFiles(ctx)
}

// GetMetadata implements MetadataReader.
func (s *DirectoryStorage) GetMetadata(ctx context.Context, name LibraryName) (*LibraryMetadata, error) {
	lib, err := s.installed(ctx, "get metadata", name)
	if err != nil {
		return nil, err
	}
	return lib.metadata(ctx)
}

// GetInstalled implements LibraryStorage. Directories whose name is not an
// uber-name, or whose library.json names a different library, are skipped.
func (s *DirectoryStorage) GetInstalled(ctx context.Context, machineNames ...string) ([]LibraryName, error) {
	entries, err := s.fs.ListContents(ctx, "", false)
	if err != nil {
		return nil, fmt.Errorf("list libraries in %s: %w", s.location, err)
	}

	var names []LibraryName
	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		fields := logrus.Fields{"dir": entry.Path, "location": s.location}

		expected, err := ParseUberName(entry.Path)
		if err != nil {
			s.logger.WithFields(fields).Debug("skipping directory without uber-name")
			continue
		}
		actual, err := newLibraryDir(s.fs, entry.Path, nil).name(ctx)
		if err != nil {
			s.logger.WithFields(fields).WithError(err).Debug("skipping directory without readable library.json")
			continue
		}
		if !actual.Equal(expected) {
			s.logger.WithFields(fields).WithField("library", actual.UberName()).Debug("skipping directory holding another library")
			continue
		}
		names = append(names, actual)
	}
	return filterByMachineName(names, machineNames), nil
}

// InstallLibrary writes library.json of a new library.
func (s *DirectoryStorage) InstallLibrary(ctx context.Context, metadata *LibraryMetadata, restricted bool) (*InstalledLibrary, error) {
	const op = "install"
	if metadata == nil {
		return nil, &LibraryError{Op: op, Location: s.location, Err: errNoMetadata}
	}
	name := metadata.LibraryName
	if err := name.Validate(); err != nil {
		return nil, &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}

	exists, err := s.LibraryExists(ctx, name)
	if err != nil {
		return nil, &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}
	if exists {
		return nil, &LibraryError{Op: op, Library: name, Location: s.location, Err: ErrAlreadyInstalled}
	}

	if err := s.writeMetadata(ctx, metadata); err != nil {
		return nil, &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}

	s.logger.WithFields(logging.LibraryFields(name.UberName(), s.location)).Info("library installed")
	return &InstalledLibrary{LibraryMetadata: *metadata, Restricted: restricted}, nil
}

// UpdateLibrary replaces library.json of an installed library.
func (s *DirectoryStorage) UpdateLibrary(ctx context.Context, metadata *LibraryMetadata) (*InstalledLibrary, error) {
	const op = "update"
	if metadata == nil {
		return nil, &LibraryError{Op: op, Location: s.location, Err: errNoMetadata}
	}
	name := metadata.LibraryName
	if _, err := s.installed(ctx, op, name); err != nil {
		return nil, err
	}

	if err := s.writeMetadata(ctx, metadata); err != nil {
		return nil, &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}

	s.logger.WithFields(logging.LibraryFields(name.UberName(), s.location)).Info("library updated")
	return &InstalledLibrary{LibraryMetadata: *metadata}, nil
}

// RemoveLibrary deletes the library directory.
func (s *DirectoryStorage) RemoveLibrary(ctx context.Context, name LibraryName) error {
	const op = "remove"
	exists, err := s.fs.DirExists(ctx, name.UberName())
	if err != nil {
		return &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}
	if !exists {
		return notInstalled(op, name, s.location)
	}

	if err := s.fs.DeleteDir(ctx, name.UberName()); err != nil {
		return &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}

	s.logger.WithFields(logging.LibraryFields(name.UberName(), s.location)).Info("library removed")
	return nil
}

// AddLibraryFile stores a file of an installed library, replacing an
// existing one. Ignored files and, with WithFileValidator, files of other
// types are refused.
func (s *DirectoryStorage) AddLibraryFile(ctx context.Context, name LibraryName, file string, r io.Reader) (bool, error) {
	const op = "add file"
	if _, err := s.installed(ctx, op, name); err != nil {
		return false, err
	}

	file = cleanFile(file)
	if file == "" {
		return false, &LibraryError{Op: op, Library: name, Location: s.location, Err: filestore.ErrNotAllowed}
	}
	if s.ignore.Match(file) {
		return false, &LibraryError{Op: op, Library: name, Location: s.location, Err: fmt.Errorf("%s: %w", file, ErrIgnoredFile)}
	}
	if s.files != nil {
		if err := s.files.ValidateName(file); err != nil {
			return false, &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
		}
	}

	if err := s.fs.Write(ctx, path.Join(name.UberName(), file), r, filestore.WithOverwrite(true)); err != nil {
		return false, &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}
	return true, nil
}

// ClearLibraryFiles removes every file of the library except library.json.
func (s *DirectoryStorage) ClearLibraryFiles(ctx context.Context, name LibraryName) error {
	const op = "clear files"
	if _, err := s.installed(ctx, op, name); err != nil {
		return err
	}

	dir := name.UberName()
	entries, err := s.fs.ListContents(ctx, dir, false)
	if err != nil {
		return &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}

	for _, entry := range entries {
		switch {
		case entry.IsDir:
			err = s.fs.DeleteDir(ctx, entry.Path)
		case entry.Path == path.Join(dir, MetadataFile):
			continue
		default:
			err = s.fs.Delete(ctx, entry.Path)
		}
		if err != nil {
			return &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
		}
	}
	return nil
}

func (s *DirectoryStorage) writeMetadata(ctx context.Context, metadata *LibraryMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	return s.fs.Write(ctx, path.Join(metadata.UberName(), MetadataFile), bytes.NewReader(data),
		filestore.WithOverwrite(true),
		filestore.WithContentType("application/json"),
	)
}

var (
	_ LibraryStorage = (*DirectoryStorage)(nil)
	_ MetadataReader = (*DirectoryStorage)(nil)
)
