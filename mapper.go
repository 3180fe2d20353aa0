package libkit

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gobeaver/libkit/filestore"
	"github.com/gobeaver/libkit/internal/logging"
)

// DirectoryMapper finds the directory under a base directory that holds a
// library, whatever that directory is called. Each subdirectory's
// library.json decides which library it holds.
//
// Results are cached per library name. A cached directory is reused as long as
// its library.json still exists; otherwise the base directory is scanned
// again. Misses are never cached, a matching directory may appear at any
// time while libraries are being developed.
//
// A mapper is bound to one file store and must not be shared between
// different base directories.
type DirectoryMapper struct {
	fs       filestore.FileReader
	logger   logrus.FieldLogger
	location string

	mu    sync.Mutex
	cache map[LibraryName]string
}

// MappedLibrary pairs a library with the directory holding it.
type MappedLibrary struct {
	Name LibraryName
	Dir  string
}

// NewDirectoryMapper creates a mapper scanning the root of fs.
func NewDirectoryMapper(fs filestore.FileReader, opts ...StorageOption) *DirectoryMapper {
	o := applyStorageOptions(opts)
	return &DirectoryMapper{
		fs:       fs,
		logger:   o.logger,
		location: o.location,
		cache:    make(map[LibraryName]string),
	}
}

// Resolve returns the directory, relative to the base directory, holding
// the library. found is false when no subdirectory matches; err is only set
// when the base directory itself cannot be read.
func (m *DirectoryMapper) Resolve(ctx context.Context, name LibraryName) (dir string, found bool, err error) {
	if cached := m.Cached(name); cached != "" {
		exists, err := m.fs.FileExists(ctx, path.Join(cached, MetadataFile))
		if err == nil && exists {
			return cached, true, nil
		}
	}

	m.mu.Lock()
	m.cache[name] = ""
	m.mu.Unlock()

	candidates, err := m.candidates(ctx)
	if err != nil {
		return "", false, err
	}

	for _, candidate := range candidates {
		candidateName, ok := m.identify(ctx, candidate)
		if !ok || !candidateName.Equal(name) {
			continue
		}

		m.mu.Lock()
		m.cache[name] = candidate
		m.mu.Unlock()

		m.logger.WithFields(logging.LibraryFields(name.UberName(), m.location)).
			WithField("dir", candidate).
			Debug("library directory resolved")
		return candidate, true, nil
	}

	return "", false, nil
}

// Scan reads every candidate directory and returns the libraries found, in
// directory name order. When two directories claim the same library the
// first one wins, matching Resolve. Scan refreshes the cache as it goes.
func (m *DirectoryMapper) Scan(ctx context.Context) ([]MappedLibrary, error) {
	candidates, err := m.candidates(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[LibraryName]bool)
	var libraries []MappedLibrary
	for _, candidate := range candidates {
		name, ok := m.identify(ctx, candidate)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		libraries = append(libraries, MappedLibrary{Name: name, Dir: candidate})
	}

	m.mu.Lock()
	for _, library := range libraries {
		m.cache[library.Name] = library.Dir
	}
	m.mu.Unlock()

	return libraries, nil
}

// Cached returns the cached directory of the library or "" if there is none.
func (m *DirectoryMapper) Cached(name LibraryName) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[name]
}

// Invalidate drops the cache entry of one library.
func (m *DirectoryMapper) Invalidate(name LibraryName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, name)
}

// Reset drops the whole cache.
func (m *DirectoryMapper) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[LibraryName]string)
}

// candidates lists the direct subdirectories of the base directory, sorted.
func (m *DirectoryMapper) candidates(ctx context.Context) ([]string, error) {
	entries, err := m.fs.ListContents(ctx, "", false)
	if err != nil {
		return nil, fmt.Errorf("scan library directory %s: %w", m.location, err)
	}

	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir {
			dirs = append(dirs, entry.Path)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// identify reads the identity of a candidate directory. Directories without a
// metadata record or with a malformed one are not libraries.
func (m *DirectoryMapper) identify(ctx context.Context, dir string) (LibraryName, bool) {
	lib := newLibraryDir(m.fs, dir, nil)

	exists, err := lib.hasMetadata(ctx)
	if err != nil || !exists {
		return LibraryName{}, false
	}

	name, err := lib.name(ctx)
	if err != nil {
		fields := logrus.Fields{"dir": dir, "location": m.location}
		if errors.Is(err, ErrMalformedMetadata) {
			m.logger.WithFields(fields).WithError(err).Debug("skipping directory with malformed library.json")
		} else {
			m.logger.WithFields(fields).WithError(err).Debug("skipping unreadable library directory")
		}
		return LibraryName{}, false
	}
	return name, true
}
