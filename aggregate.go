package libkit

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gobeaver/libkit/internal/logging"
)

// AggregatingStorage combines several storages into one. Reads go to the
// first read target that has the library, in the order given; every write
// goes to the single write target. The write target may also be one of the
// read targets, and a storage may be listed more than once.
type AggregatingStorage struct {
	write  LibraryStorage
	reads  []LibraryStorage
	logger logrus.FieldLogger
}

// AggregateOption configures an AggregatingStorage.
type AggregateOption func(*AggregatingStorage)

// WithAggregateLogger sets the logger for per-target lookup failures.
func WithAggregateLogger(logger logrus.FieldLogger) AggregateOption {
	return func(s *AggregatingStorage) {
		s.logger = logger
	}
}

// NewAggregatingStorage creates an aggregate writing to write and reading
// from reads in priority order. write must not be nil.
func NewAggregatingStorage(write LibraryStorage, reads []LibraryStorage, opts ...AggregateOption) *AggregatingStorage {
	s := &AggregatingStorage{
		write:  write,
		reads:  append([]LibraryStorage(nil), reads...),
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Targets returns a copy of the read targets in priority order.
func (s *AggregatingStorage) Targets() []LibraryStorage {
	return append([]LibraryStorage(nil), s.reads...)
}

// WriteTarget returns the storage receiving all mutations.
func (s *AggregatingStorage) WriteTarget() LibraryStorage {
	return s.write
}

// find returns the first read target holding the library. Targets that
// fail to answer are treated as not holding it.
func (s *AggregatingStorage) find(ctx context.Context, name LibraryName) (LibraryStorage, bool) {
	for i, target := range s.reads {
		exists, err := target.LibraryExists(ctx, name)
		if err != nil {
			s.logger.WithFields(logging.TargetFields(name.UberName(), i, target)).
				WithError(err).
				Debug("read target failed, treating library as absent")
			continue
		}
		if exists {
			return target, true
		}
	}
	return nil, false
}

func (s *AggregatingStorage) target(ctx context.Context, op string, name LibraryName) (LibraryStorage, error) {
	target, ok := s.find(ctx, name)
	if !ok {
		return nil, notInstalled(op, name, "")
	}
	return target, nil
}

// LibraryExists reports whether any read target holds the library. Lookup
// failures of single targets count as absence, so the error is always nil.
func (s *AggregatingStorage) LibraryExists(ctx context.Context, name LibraryName) (bool, error) {
	_, ok := s.find(ctx, name)
	return ok, nil
}

// FileExists implements LibraryStorage.
func (s *AggregatingStorage) FileExists(ctx context.Context, name LibraryName, file string) (bool, error) {
	target, err := s.target(ctx, "file exists", name)
	if err != nil {
		return false, err
	}
	return target.FileExists(ctx, name, file)
}

// GetFileStream implements LibraryStorage.
func (s *AggregatingStorage) GetFileStream(ctx context.Context, name LibraryName, file string) (io.ReadCloser, error) {
	target, err := s.target(ctx, "get file", name)
	if err != nil {
		return nil, err
	}
	return target.GetFileStream(ctx, name, file)
}

// ListFiles implements LibraryStorage.
func (s *AggregatingStorage) ListFiles(ctx context.Context, name LibraryName) ([]string, error) {
	target, err := s.target(ctx, "list files", name)
	if err != nil {
		return nil, err
	}
	return target.ListFiles(ctx, name)
}

// GetLanguageFiles implements LibraryStorage.
func (s *AggregatingStorage) GetLanguageFiles(ctx context.Context, name LibraryName) ([]string, error) {
	target, err := s.target(ctx, "list language files", name)
	if err != nil {
		return nil, err
	}
	return target.GetLanguageFiles(ctx, name)
}

// GetMetadata implements MetadataReader for targets that do.
func (s *AggregatingStorage) GetMetadata(ctx context.Context, name LibraryName) (*LibraryMetadata, error) {
	const op = "get metadata"
	target, err := s.target(ctx, op, name)
	if err != nil {
		return nil, err
	}
	reader, ok := target.(MetadataReader)
	if !ok {
		return nil, &LibraryError{Op: op, Library: name, Err: fmt.Errorf("storage %T cannot read metadata", target)}
	}
	return reader.GetMetadata(ctx, name)
}

// GetInstalled queries all read targets concurrently and merges their
// answers in read-target order, keeping the first occurrence of each
// library. A failing target contributes nothing.
func (s *AggregatingStorage) GetInstalled(ctx context.Context, machineNames ...string) ([]LibraryName, error) {
	results := make([][]LibraryName, len(s.reads))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range s.reads {
		g.Go(func() error {
			names, err := target.GetInstalled(gctx, machineNames...)
			if err != nil {
				s.logger.WithField("target", i).WithError(err).Debug("read target failed to list libraries")
				return nil
			}
			results[i] = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[LibraryName]struct{})
	merged := []LibraryName{}
	for _, names := range results {
		for _, name := range names {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			merged = append(merged, name)
		}
	}
	return merged, nil
}

// InstallLibrary is forwarded to the write target.
func (s *AggregatingStorage) InstallLibrary(ctx context.Context, metadata *LibraryMetadata, restricted bool) (*InstalledLibrary, error) {
	return s.write.InstallLibrary(ctx, metadata, restricted)
}

// UpdateLibrary is forwarded to the write target.
func (s *AggregatingStorage) UpdateLibrary(ctx context.Context, metadata *LibraryMetadata) (*InstalledLibrary, error) {
	return s.write.UpdateLibrary(ctx, metadata)
}

// RemoveLibrary is forwarded to the write target.
func (s *AggregatingStorage) RemoveLibrary(ctx context.Context, name LibraryName) error {
	return s.write.RemoveLibrary(ctx, name)
}

// AddLibraryFile is forwarded to the write target.
func (s *AggregatingStorage) AddLibraryFile(ctx context.Context, name LibraryName, file string, r io.Reader) (bool, error) {
	return s.write.AddLibraryFile(ctx, name, file, r)
}

// ClearLibraryFiles is forwarded to the write target.
func (s *AggregatingStorage) ClearLibraryFiles(ctx context.Context, name LibraryName) error {
	return s.write.ClearLibraryFiles(ctx, name)
}

var (
	_ LibraryStorage = (*AggregatingStorage)(nil)
	_ MetadataReader = (*AggregatingStorage)(nil)
)
