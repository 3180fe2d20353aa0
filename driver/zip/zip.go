// Package zip serves a zip archive, typically an .h5p content package, as
// a read-only filestore.FileSystem. The archive is loaded into memory when
// opened, so no file handle stays open afterwards.
package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gobeaver/libkit/filestore"
	"github.com/gobeaver/libkit/filevalidator"
)

// Adapter is an immutable in-memory index of a zip archive.
type Adapter struct {
	path    string
	entries map[string]*entry
}

type entry struct {
	content []byte
	modTime time.Time
	isDir   bool
}

// Option configures how an archive is loaded.
type Option func(*options)

type options struct {
	validator *filevalidator.ArchiveValidator
}

// WithArchiveValidator replaces filevalidator.DefaultArchiveValidator. A nil
// validator loads the archive unchecked.
func WithArchiveValidator(v *filevalidator.ArchiveValidator) Option {
	return func(o *options) {
		o.validator = v
	}
}

func applyOptions(opts []Option) options {
	o := options{validator: filevalidator.DefaultArchiveValidator()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open loads the archive at zipPath. The archive is validated before any
// entry is inflated.
func Open(zipPath string, opts ...Option) (*Adapter, error) {
	f, err := os.Open(zipPath)
	if err != nil {
		return nil, &filestore.PathError{Op: "open", Path: zipPath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &filestore.PathError{Op: "open", Path: zipPath, Err: err}
	}
	return newFromReaderAt(zipPath, f, info.Size(), applyOptions(opts))
}

// NewFromBytes indexes an archive held in memory.
func NewFromBytes(name string, data []byte, opts ...Option) (*Adapter, error) {
	return newFromReaderAt(name, bytes.NewReader(data), int64(len(data)), applyOptions(opts))
}

func newFromReaderAt(name string, r io.ReaderAt, size int64, o options) (*Adapter, error) {
	reader, err := zip.NewReader(r, size)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, &filestore.PathError{Op: "open", Path: name, Err: err}
	}

	if o.validator != nil {
		if err := o.validator.Validate(reader, size); err != nil {
			return nil, &filestore.PathError{Op: "open", Path: name, Err: err}
		}
	}
	return load(name, reader)
}

func load(name string, reader *zip.Reader) (*Adapter, error) {
	a := &Adapter{
		path:    name,
		entries: map[string]*entry{"": {isDir: true}},
	}

	for _, f := range reader.File {
		p := normalizePath(f.Name)
		// entries escaping the archive root are never served
		if p == "" || !isValidPath(p) {
			continue
		}

		e := &entry{modTime: f.Modified, isDir: f.FileInfo().IsDir()}
		if !e.isDir {
			rc, err := f.Open()
			if err != nil {
				return nil, &filestore.PathError{Op: "open", Path: name, Err: fmt.Errorf("read %s: %w", f.Name, err)}
			}
			e.content, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, &filestore.PathError{Op: "open", Path: name, Err: fmt.Errorf("read %s: %w", f.Name, err)}
			}
		}
		a.entries[p] = e
		a.ensureParentDirs(p, f.Modified)
	}

	return a, nil
}

// Path returns the archive the adapter was loaded from.
func (a *Adapter) Path() string {
	return a.path
}

// Read implements filestore.FileReader
func (a *Adapter) Read(ctx context.Context, filePath string) (io.ReadCloser, error) {
	data, err := a.ReadAll(ctx, filePath)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadAll implements filestore.FileReader
func (a *Adapter) ReadAll(ctx context.Context, filePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath = normalizePath(filePath)
	e, exists := a.entries[filePath]
	if !exists {
		return nil, &filestore.PathError{Op: "read", Path: filePath, Err: filestore.ErrNotExist}
	}
	if e.isDir {
		return nil, &filestore.PathError{Op: "read", Path: filePath, Err: filestore.ErrIsDir}
	}
	return bytes.Clone(e.content), nil
}

// FileExists implements filestore.FileReader
func (a *Adapter) FileExists(ctx context.Context, filePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e, exists := a.entries[normalizePath(filePath)]
	return exists && !e.isDir, nil
}

// DirExists implements filestore.FileReader
func (a *Adapter) DirExists(ctx context.Context, dirPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e, exists := a.entries[normalizePath(dirPath)]
	return exists && e.isDir, nil
}

// Stat implements filestore.FileReader
func (a *Adapter) Stat(ctx context.Context, filePath string) (*filestore.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath = normalizePath(filePath)
	e, exists := a.entries[filePath]
	if !exists {
		return nil, &filestore.PathError{Op: "stat", Path: filePath, Err: filestore.ErrNotExist}
	}
	info := fileInfo(filePath, e)
	return &info, nil
}

// ListContents implements filestore.FileReader. Results are sorted by path.
func (a *Adapter) ListContents(ctx context.Context, prefix string, recursive bool) ([]filestore.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix = normalizePath(prefix)
	dir, exists := a.entries[prefix]
	if !exists {
		return nil, &filestore.PathError{Op: "listcontents", Path: prefix, Err: filestore.ErrNotExist}
	}
	if !dir.isDir {
		return nil, &filestore.PathError{Op: "listcontents", Path: prefix, Err: filestore.ErrNotDir}
	}

	var files []filestore.FileInfo
	for p, e := range a.entries {
		if isChild(prefix, p, recursive) {
			files = append(files, fileInfo(p, e))
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Write implements filestore.FileWriter. Archives are never modified.
func (a *Adapter) Write(ctx context.Context, filePath string, content io.Reader, options ...filestore.Option) error {
	return &filestore.PathError{Op: "write", Path: filePath, Err: filestore.ErrReadOnly}
}

// Delete implements filestore.FileWriter. Archives are never modified.
func (a *Adapter) Delete(ctx context.Context, filePath string) error {
	return &filestore.PathError{Op: "delete", Path: filePath, Err: filestore.ErrReadOnly}
}

// CreateDir implements filestore.FileWriter. Archives are never modified.
func (a *Adapter) CreateDir(ctx context.Context, dirPath string) error {
	return &filestore.PathError{Op: "createdir", Path: dirPath, Err: filestore.ErrReadOnly}
}

// DeleteDir implements filestore.FileWriter. Archives are never modified.
func (a *Adapter) DeleteDir(ctx context.Context, dirPath string) error {
	return &filestore.PathError{Op: "deletedir", Path: dirPath, Err: filestore.ErrReadOnly}
}

// Checksum implements filestore.CanChecksum for archive entries.
func (a *Adapter) Checksum(ctx context.Context, filePath string, algorithm filestore.ChecksumAlgorithm) (string, error) {
	data, err := a.ReadAll(ctx, filePath)
	if err != nil {
		return "", err
	}

	checksum, err := filestore.CalculateChecksum(bytes.NewReader(data), algorithm)
	if err != nil {
		return "", &filestore.PathError{Op: "checksum", Path: filePath, Err: err}
	}
	return checksum, nil
}

// Watch implements filestore.CanWatch. A loaded archive never changes.
func (a *Adapter) Watch(ctx context.Context, filter string) (filestore.ChangeToken, error) {
	return filestore.CancelledChangeToken{}, nil
}

func (a *Adapter) ensureParentDirs(p string, modTime time.Time) {
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, exists := a.entries[dir]; exists {
			continue
		}
		a.entries[dir] = &entry{isDir: true, modTime: modTime}
	}
}

func fileInfo(p string, e *entry) filestore.FileInfo {
	info := filestore.FileInfo{
		Name:    path.Base(p),
		Path:    p,
		ModTime: e.modTime,
		IsDir:   e.isDir,
	}
	if !e.isDir {
		info.Size = int64(len(e.content))
		info.ContentType = detectContentType(p)
	}
	return info
}

func isChild(parent, p string, recursive bool) bool {
	if p == parent {
		return false
	}
	rel := p
	if parent != "" {
		if !strings.HasPrefix(p, parent+"/") {
			return false
		}
		rel = strings.TrimPrefix(p, parent+"/")
	}
	return recursive || !strings.Contains(rel, "/")
}

// normalizePath strips leading and trailing slashes and cleans the path.
func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return path.Clean(p)
}

// isValidPath rejects paths that climb out of the archive.
func isValidPath(p string) bool {
	return p != ".." && !strings.HasPrefix(p, "../")
}

func detectContentType(filePath string) string {
	if contentType := mime.TypeByExtension(path.Ext(filePath)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

var (
	_ filestore.FileSystem  = (*Adapter)(nil)
	_ filestore.CanChecksum = (*Adapter)(nil)
	_ filestore.CanWatch    = (*Adapter)(nil)
)
