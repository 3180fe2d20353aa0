package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/gobeaver/libkit/filestore"
)

// Adapter provides a local filesystem implementation of filestore.FileSystem
type Adapter struct {
	root string
}

// New creates a new local filesystem adapter, creating root if needed
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Ensure the root directory exists
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, err
	}

	return &Adapter{
		root: absRoot,
	}, nil
}

// Open creates an adapter over an existing directory. Unlike New it never
// creates anything, which is what read-only library directories want.
func Open(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &filestore.PathError{Op: "open", Path: root, Err: filestore.ErrNotExist}
		}
		return nil, &filestore.PathError{Op: "open", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &filestore.PathError{Op: "open", Path: root, Err: filestore.ErrNotDir}
	}

	return &Adapter{root: absRoot}, nil
}

// Root returns the absolute directory the adapter is rooted at.
func (a *Adapter) Root() string {
	return a.root
}

// resolve maps a slash separated path to an absolute path under the root.
func (a *Adapter) resolve(op, path string) (string, error) {
	fullPath := filepath.Join(a.root, filepath.FromSlash(filepath.Clean("/"+path)))

	// Check if the path is under the root
	if !isPathUnderRoot(a.root, fullPath) {
		return "", &filestore.PathError{
			Op:   op,
			Path: path,
			Err:  filestore.ErrNotAllowed,
		}
	}
	return fullPath, nil
}

// Write implements filestore.FileWriter
func (a *Adapter) Write(ctx context.Context, path string, content io.Reader, options ...filestore.Option) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullPath, err := a.resolve("write", path)
	if err != nil {
		return err
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return &filestore.PathError{Op: "write", Path: path, Err: err}
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return &filestore.PathError{Op: "write", Path: path, Err: err}
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return &filestore.PathError{Op: "write", Path: path, Err: err}
	}

	opts := filestore.ApplyOptions(options...)

	// Set file permissions based on visibility
	switch opts.Visibility {
	case filestore.Public:
		if err := os.Chmod(fullPath, 0644); err != nil {
			return &filestore.PathError{Op: "write", Path: path, Err: err}
		}
	case filestore.Private:
		if err := os.Chmod(fullPath, 0600); err != nil {
			return &filestore.PathError{Op: "write", Path: path, Err: err}
		}
	}

	return nil
}

// Read implements filestore.FileReader
func (a *Adapter) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullPath, err := a.resolve("read", path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &filestore.PathError{Op: "read", Path: path, Err: filestore.ErrNotExist}
		}
		return nil, &filestore.PathError{Op: "read", Path: path, Err: err}
	}

	return f, nil
}

// ReadAll implements filestore.FileReader
func (a *Adapter) ReadAll(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// Delete implements filestore.FileWriter
func (a *Adapter) Delete(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullPath, err := a.resolve("delete", path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return &filestore.PathError{Op: "delete", Path: path, Err: filestore.ErrNotExist}
		}
		return &filestore.PathError{Op: "delete", Path: path, Err: err}
	}

	return nil
}

// FileExists implements filestore.FileReader
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	info, err := a.stat(ctx, "fileexists", path)
	if err != nil || info == nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// DirExists implements filestore.FileReader
func (a *Adapter) DirExists(ctx context.Context, path string) (bool, error) {
	info, err := a.stat(ctx, "direxists", path)
	if err != nil || info == nil {
		return false, err
	}
	return info.IsDir(), nil
}

// stat returns nil info without error when the path does not exist.
func (a *Adapter) stat(ctx context.Context, op, path string) (os.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullPath, err := a.resolve(op, path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &filestore.PathError{Op: op, Path: path, Err: err}
	}
	return info, nil
}

// Stat implements filestore.FileReader
func (a *Adapter) Stat(ctx context.Context, path string) (*filestore.FileInfo, error) {
	info, err := a.stat(ctx, "stat", path)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, &filestore.PathError{Op: "stat", Path: path, Err: filestore.ErrNotExist}
	}

	fullPath, _ := a.resolve("stat", path)
	contentType := ""
	if !info.IsDir() {
		contentType = getContentType(fullPath)
	}

	return &filestore.FileInfo{
		Name:        info.Name(),
		Path:        strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+path)), "/"),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		IsDir:       info.IsDir(),
		ContentType: contentType,
	}, nil
}

// ListContents implements filestore.FileReader. Paths are slash separated
// and relative to the adapter root.
func (a *Adapter) ListContents(ctx context.Context, path string, recursive bool) ([]filestore.FileInfo, error) {
	info, err := a.stat(ctx, "listcontents", path)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, &filestore.PathError{Op: "listcontents", Path: path, Err: filestore.ErrNotExist}
	}
	if !info.IsDir() {
		return nil, &filestore.PathError{Op: "listcontents", Path: path, Err: filestore.ErrNotDir}
	}

	fullPath, _ := a.resolve("listcontents", path)
	var files []filestore.FileInfo

	if recursive {
		err = filepath.Walk(fullPath, func(walkPath string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Skip the root directory itself
			if walkPath == fullPath {
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			files = append(files, a.fileInfo(walkPath, info))
			return nil
		})
		if err != nil {
			return nil, &filestore.PathError{Op: "listcontents", Path: path, Err: err}
		}
		return files, nil
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, &filestore.PathError{Op: "listcontents", Path: path, Err: err}
	}

	files = make([]filestore.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, a.fileInfo(filepath.Join(fullPath, entry.Name()), info))
	}

	return files, nil
}

func (a *Adapter) fileInfo(fullPath string, info os.FileInfo) filestore.FileInfo {
	relPath, _ := filepath.Rel(a.root, fullPath)

	contentType := ""
	if !info.IsDir() {
		contentType = getContentType(fullPath)
	}

	return filestore.FileInfo{
		Name:        info.Name(),
		Path:        filepath.ToSlash(relPath),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		IsDir:       info.IsDir(),
		ContentType: contentType,
	}
}

// CreateDir implements filestore.FileWriter
func (a *Adapter) CreateDir(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullPath, err := a.resolve("createdir", path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(fullPath, 0755); err != nil {
		return &filestore.PathError{Op: "createdir", Path: path, Err: err}
	}

	return nil
}

// DeleteDir implements filestore.FileWriter
func (a *Adapter) DeleteDir(ctx context.Context, path string) error {
	info, err := a.stat(ctx, "deletedir", path)
	if err != nil {
		return err
	}
	if info == nil {
		return &filestore.PathError{Op: "deletedir", Path: path, Err: filestore.ErrNotExist}
	}
	if !info.IsDir() {
		return &filestore.PathError{Op: "deletedir", Path: path, Err: filestore.ErrNotDir}
	}

	fullPath, _ := a.resolve("deletedir", path)
	if fullPath == a.root {
		return &filestore.PathError{Op: "deletedir", Path: path, Err: filestore.ErrNotAllowed}
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return &filestore.PathError{Op: "deletedir", Path: path, Err: err}
	}

	return nil
}

// Checksum implements filestore.CanChecksum for local files.
func (a *Adapter) Checksum(ctx context.Context, path string, algorithm filestore.ChecksumAlgorithm) (string, error) {
	rc, err := a.Read(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	checksum, err := filestore.CalculateChecksum(rc, algorithm)
	if err != nil {
		return "", &filestore.PathError{Op: "checksum", Path: path, Err: err}
	}

	return checksum, nil
}

// Watch implements filestore.CanWatch using fsnotify for native file system events.
// Recursive patterns ("**") watch every directory that exists when Watch is called.
func (a *Adapter) Watch(ctx context.Context, filter string) (filestore.ChangeToken, error) {
	token := filestore.NewCallbackChangeToken()

	watchPath := a.root
	filterPattern := filter

	// If filter starts with a path, watch only below it
	if !strings.HasPrefix(filter, "*") {
		idx := strings.IndexAny(filter, "*?[")
		if idx > 0 {
			dirPart := filter[:idx]
			if lastSlash := strings.LastIndex(dirPart, "/"); lastSlash >= 0 {
				watchPath = filepath.Join(a.root, dirPart[:lastSlash])
				filterPattern = filter[lastSlash+1:]
			}
		} else if idx < 0 {
			// No glob - watch specific file
			watchPath = filepath.Join(a.root, filepath.Dir(filter))
			filterPattern = filepath.Base(filter)
		}
	}

	pathMatch, err := compileFilter(filter)
	if err != nil {
		return nil, &filestore.PathError{Op: "watch", Path: filter, Err: err}
	}
	nameMatch, err := compileFilter(filterPattern)
	if err != nil {
		return nil, &filestore.PathError{Op: "watch", Path: filter, Err: err}
	}

	watcher, err := newFSWatcher()
	if err != nil {
		return nil, &filestore.PathError{Op: "watch", Path: filter, Err: err}
	}

	if err := watcher.Add(watchPath); err != nil {
		watcher.Close()
		return nil, &filestore.PathError{Op: "watch", Path: filter, Err: err}
	}

	if strings.Contains(filter, "**") {
		filepath.Walk(watchPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				watcher.Add(path)
			}
			return nil
		})
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events():
				if !ok {
					return
				}

				relPath, err := filepath.Rel(a.root, event.Name)
				if err != nil {
					continue
				}
				relPath = filepath.ToSlash(relPath)

				if pathMatch.Match(relPath) || nameMatch.Match(filepath.Base(relPath)) {
					token.SignalChange()
					return // Token is spent after first change
				}
			case _, ok := <-watcher.Errors():
				if !ok {
					return
				}
			}
		}
	}()

	return token, nil
}

// pathFilter matches slash separated paths against a glob. "*" stays within
// one path segment while "**" spans segments; a leading "**/" also matches
// at the root.
type pathFilter struct {
	globs []glob.Glob
}

func compileFilter(filter string) (*pathFilter, error) {
	patterns := []string{filter}
	if rest, ok := strings.CutPrefix(filter, "**/"); ok {
		patterns = append(patterns, rest)
	}

	f := &pathFilter{}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

func (f *pathFilter) Match(path string) bool {
	for _, g := range f.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// fsWatcher wraps fsnotify.Watcher with a simpler interface
type fsWatcher interface {
	Add(path string) error
	Close() error
	Events() <-chan fsEvent
	Errors() <-chan error
}

type fsEvent struct {
	Name string
	Op   uint32
}

// isPathUnderRoot checks if a path is under a given root directory
func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// getContentType tries to determine the content type of a file
func getContentType(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}

	return http.DetectContentType(buffer[:n])
}

func (a *Adapter) String() string {
	return fmt.Sprintf("local:%s", a.root)
}

var (
	_ filestore.FileSystem  = (*Adapter)(nil)
	_ filestore.CanChecksum = (*Adapter)(nil)
	_ filestore.CanWatch    = (*Adapter)(nil)
)
