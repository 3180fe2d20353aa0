package libkit

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/gobeaver/libkit/filestore"
)

// FlexibleDirectoryStorage serves libraries from subdirectories that may be
// named anything, for example source checkouts in a development folder. The
// directory of a library is found through its library.json.
//
// The storage is read-only.
type FlexibleDirectoryStorage struct {
	fs       filestore.FileReader
	mapper   *DirectoryMapper
	ignore   *IgnoreMatcher
	logger   logrus.FieldLogger
	location string
}

// NewFlexibleDirectoryStorage creates a storage over the subdirectories of
// the root of fs.
func NewFlexibleDirectoryStorage(fs filestore.FileReader, opts ...StorageOption) *FlexibleDirectoryStorage {
	o := applyStorageOptions(opts)
	return &FlexibleDirectoryStorage{
		fs:       fs,
		mapper:   NewDirectoryMapper(fs, opts...),
		ignore:   o.ignore,
		logger:   o.logger,
		location: o.location,
	}
}

// Mapper returns the directory mapper of the storage.
func (s *FlexibleDirectoryStorage) Mapper() *DirectoryMapper {
	return s.mapper
}

// Location returns the location the storage was configured with.
func (s *FlexibleDirectoryStorage) Location() string {
	return s.location
}

func (s *FlexibleDirectoryStorage) resolve(ctx context.Context, op string, name LibraryName) (libraryDir, error) {
	dir, found, err := s.mapper.Resolve(ctx, name)
	if err != nil {
		return libraryDir{}, &LibraryError{Op: op, Library: name, Location: s.location, Err: err}
	}
	if !found {
		return libraryDir{}, notInstalled(op, name, s.location)
	}
	return newLibraryDir(s.fs, dir, s.ignore), nil
}

// LibraryExists implements LibraryStorage.
func (s *FlexibleDirectoryStorage) LibraryExists(ctx context.Context, name LibraryName) (bool, error) {
	_, found, err := s.mapper.Resolve(ctx, name)
	return found, err
}

// FileExists implements LibraryStorage.
func (s *FlexibleDirectoryStorage) FileExists(ctx context.Context, name LibraryName, file string) (bool, error) {
	lib, err := s.resolve(ctx, "file exists", name)
	if err != nil {
		return false, err
	}
	return lib.fileExists(ctx, file)
}

// GetFileStream implements LibraryStorage.
func (s *FlexibleDirectoryStorage) GetFileStream(ctx context.Context, name LibraryName, file string) (io.ReadCloser, error) {
	lib, err := s.resolve(ctx, "get file", name)
	if err != nil {
		return nil, err
	}
	return lib.open(ctx, file)
}

// ListFiles implements LibraryStorage.
func (s *FlexibleDirectoryStorage) ListFiles(ctx context.Context, name LibraryName) ([]string, error) {
	lib, err := s.resolve(ctx, "list files", name)
	if err != nil {
		return nil, err
	}
	return lib.list(ctx)
}

// GetLanguageFiles implements LibraryStorage.
func (s *FlexibleDirectoryStorage) GetLanguageFiles(ctx context.Context, name LibraryName) ([]string, error) {
	lib, err := s.resolve(ctx, "list language files", name)
	if err != nil {
		return nil, err
	}
	return lib.languageFiles(ctx)
}

// GetMetadata implements MetadataReader.
func (s *FlexibleDirectoryStorage) GetMetadata(ctx context.Context, name LibraryName) (*LibraryMetadata, error) {
	lib, err := s.resolve(ctx, "get metadata", name)
	if err != nil {
		return nil, err
	}
	return lib.metadata(ctx)
}

// GetInstalled implements LibraryStorage.
func (s *FlexibleDirectoryStorage) GetInstalled(ctx context.Context, machineNames ...string) ([]LibraryName, error) {
	libraries, err := s.mapper.Scan(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]LibraryName, 0, len(libraries))
	for _, library := range libraries {
		names = append(names, library.Name)
	}
	return filterByMachineName(names, machineNames), nil
}

// InstallLibrary always fails with ErrReadOnly.
func (s *FlexibleDirectoryStorage) InstallLibrary(_ context.Context, metadata *LibraryMetadata, _ bool) (*InstalledLibrary, error) {
	return nil, s.readOnly("install", nameOf(metadata))
}

// UpdateLibrary always fails with ErrReadOnly.
func (s *FlexibleDirectoryStorage) UpdateLibrary(_ context.Context, metadata *LibraryMetadata) (*InstalledLibrary, error) {
	return nil, s.readOnly("update", nameOf(metadata))
}

// RemoveLibrary always fails with ErrReadOnly.
func (s *FlexibleDirectoryStorage) RemoveLibrary(_ context.Context, name LibraryName) error {
	return s.readOnly("remove", name)
}

// AddLibraryFile always fails with ErrReadOnly.
func (s *FlexibleDirectoryStorage) AddLibraryFile(_ context.Context, name LibraryName, _ string, _ io.Reader) (bool, error) {
	return false, s.readOnly("add file", name)
}

// ClearLibraryFiles always fails with ErrReadOnly.
func (s *FlexibleDirectoryStorage) ClearLibraryFiles(_ context.Context, name LibraryName) error {
	return s.readOnly("clear files", name)
}

func (s *FlexibleDirectoryStorage) readOnly(op string, name LibraryName) error {
	return &LibraryError{Op: op, Library: name, Location: s.location, Err: ErrReadOnly}
}

// Watch drops the mapper cache whenever a library.json below the storage
// changes, until ctx is done. File stores that cannot watch are left alone
// and Watch reports false.
func (s *FlexibleDirectoryStorage) Watch(ctx context.Context) bool {
	watcher, ok := s.fs.(filestore.CanWatch)
	if !ok {
		return false
	}

	pattern := "**/" + MetadataFile
	filestore.OnChange(ctx, func() (filestore.ChangeToken, error) {
		token, err := watcher.Watch(ctx, pattern)
		if err != nil && ctx.Err() == nil {
			s.logger.WithError(err).WithField("location", s.location).Warn("library watch stopped")
		}
		return token, err
	}, func() {
		s.logger.WithField("location", s.location).Debug("library.json changed, resetting directory cache")
		s.mapper.Reset()
	})
	return true
}

var (
	_ LibraryStorage = (*FlexibleDirectoryStorage)(nil)
	_ MetadataReader = (*FlexibleDirectoryStorage)(nil)
)
