package filestore

import (
	"context"
	"errors"
	"io"
)

// ErrReadOnly is returned when a write operation is attempted on a read-only filesystem.
var ErrReadOnly = errors.New("filesystem is read-only")

// ReadOnlyFileSystem wraps a FileSystem to prevent all write operations.
// Library directories that are only ever read from (source checkouts,
// mirrored production libraries) are opened through it so that a
// misrouted write cannot touch them.
//
// Example:
//
//	fs, _ := local.New("./dev")
//	readOnly := filestore.NewReadOnlyFileSystem(fs)
//
//	// Write operations return ErrReadOnly
//	err := readOnly.Write(ctx, "file.txt", reader)
type ReadOnlyFileSystem struct {
	fs             FileSystem
	onWriteAttempt func(op, path string)
}

// ReadOnlyOption is a functional option for configuring ReadOnlyFileSystem.
type ReadOnlyOption func(*ReadOnlyFileSystem)

// WithWriteAttemptHandler sets a hook that observes refused writes, e.g. for logging.
func WithWriteAttemptHandler(handler func(op, path string)) ReadOnlyOption {
	return func(r *ReadOnlyFileSystem) {
		r.onWriteAttempt = handler
	}
}

// NewReadOnlyFileSystem creates a read-only wrapper around a FileSystem.
func NewReadOnlyFileSystem(fs FileSystem, opts ...ReadOnlyOption) *ReadOnlyFileSystem {
	r := &ReadOnlyFileSystem{fs: fs}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Unwrap returns the underlying FileSystem.
func (r *ReadOnlyFileSystem) Unwrap() FileSystem {
	return r.fs
}

func (r *ReadOnlyFileSystem) readOnlyError(op, path string) error {
	if r.onWriteAttempt != nil {
		r.onWriteAttempt(op, path)
	}
	return &PathError{Op: op, Path: path, Err: ErrReadOnly}
}

// Read delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	return r.fs.Read(ctx, path)
}

// ReadAll delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) ReadAll(ctx context.Context, path string) ([]byte, error) {
	return r.fs.ReadAll(ctx, path)
}

// FileExists delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) FileExists(ctx context.Context, path string) (bool, error) {
	return r.fs.FileExists(ctx, path)
}

// DirExists delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) DirExists(ctx context.Context, path string) (bool, error) {
	return r.fs.DirExists(ctx, path)
}

// Stat delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) Stat(ctx context.Context, path string) (*FileInfo, error) {
	return r.fs.Stat(ctx, path)
}

// ListContents delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) ListContents(ctx context.Context, path string, recursive bool) ([]FileInfo, error) {
	return r.fs.ListContents(ctx, path, recursive)
}

// Write returns ErrReadOnly.
func (r *ReadOnlyFileSystem) Write(ctx context.Context, path string, content io.Reader, options ...Option) error {
	return r.readOnlyError("write", path)
}

// Delete returns ErrReadOnly.
func (r *ReadOnlyFileSystem) Delete(ctx context.Context, path string) error {
	return r.readOnlyError("delete", path)
}

// CreateDir returns ErrReadOnly.
func (r *ReadOnlyFileSystem) CreateDir(ctx context.Context, path string) error {
	return r.readOnlyError("createdir", path)
}

// DeleteDir returns ErrReadOnly.
func (r *ReadOnlyFileSystem) DeleteDir(ctx context.Context, path string) error {
	return r.readOnlyError("deletedir", path)
}

// Checksum delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) Checksum(ctx context.Context, path string, algorithm ChecksumAlgorithm) (string, error) {
	return Checksum(ctx, r.fs, path, algorithm)
}

// Watch delegates to the underlying filesystem if supported.
func (r *ReadOnlyFileSystem) Watch(ctx context.Context, filter string) (ChangeToken, error) {
	if watcher, ok := r.fs.(CanWatch); ok {
		return watcher.Watch(ctx, filter)
	}
	return CancelledChangeToken{}, nil
}

var (
	_ FileSystem  = (*ReadOnlyFileSystem)(nil)
	_ CanChecksum = (*ReadOnlyFileSystem)(nil)
	_ CanWatch    = (*ReadOnlyFileSystem)(nil)
)
