package memory

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	pathpkg "path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/gobeaver/libkit/filestore"
)

// memoryFile represents a file stored in memory
type memoryFile struct {
	content     []byte
	contentType string
	metadata    map[string]string
	modTime     time.Time
}

// memoryDir represents a directory in memory
type memoryDir struct {
	modTime time.Time
}

// watchEntry represents a single watch subscription
type watchEntry struct {
	filter glob.Glob
	token  *filestore.CallbackChangeToken
}

// Adapter provides an in-memory implementation of filestore.FileSystem.
// Useful for tests and for library sets assembled at runtime.
type Adapter struct {
	mu      sync.RWMutex
	files   map[string]*memoryFile
	dirs    map[string]*memoryDir
	maxSize int64 // Maximum total storage size (0 = unlimited)
	size    int64 // Current total size

	watchMu sync.RWMutex
	watches []*watchEntry
}

// Config holds configuration for the memory adapter
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

// New creates a new in-memory filesystem adapter
func New(cfg ...Config) *Adapter {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}

	a := &Adapter{
		files:   make(map[string]*memoryFile),
		dirs:    make(map[string]*memoryDir),
		maxSize: maxSize,
	}
	a.dirs[""] = &memoryDir{modTime: time.Now()}

	return a
}

// Write implements filestore.FileWriter
func (a *Adapter) Write(ctx context.Context, path string, content io.Reader, options ...filestore.Option) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	path = normalizePath(path)
	if !isValidPath(path) || path == "" {
		return &filestore.PathError{Op: "write", Path: path, Err: filestore.ErrNotAllowed}
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return &filestore.PathError{Op: "write", Path: path, Err: err}
	}

	opts := filestore.ApplyOptions(options...)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, isDir := a.dirs[path]; isDir {
		return &filestore.PathError{Op: "write", Path: path, Err: filestore.ErrIsDir}
	}

	newSize := a.size + int64(len(data))
	if existing, exists := a.files[path]; exists {
		if !opts.Overwrite {
			return &filestore.PathError{Op: "write", Path: path, Err: filestore.ErrExist}
		}
		newSize -= int64(len(existing.content))
	}

	if a.maxSize > 0 && newSize > a.maxSize {
		return &filestore.PathError{Op: "write", Path: path, Err: filestore.ErrInvalidSize}
	}

	a.ensureParentDirs(path)

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(path, data)
	}

	a.files[path] = &memoryFile{
		content:     data,
		contentType: contentType,
		metadata:    opts.Metadata,
		modTime:     time.Now(),
	}
	a.size = newSize

	go a.notifyWatchers(path)

	return nil
}

// Read implements filestore.FileReader
func (a *Adapter) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[path]
	if !exists {
		return nil, &filestore.PathError{Op: "read", Path: path, Err: filestore.ErrNotExist}
	}

	return io.NopCloser(bytes.NewReader(file.content)), nil
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

	path = normalizePath(path)

	a.mu.Lock()
	defer a.mu.Unlock()

	file, exists := a.files[path]
	if !exists {
		return &filestore.PathError{Op: "delete", Path: path, Err: filestore.ErrNotExist}
	}

	a.size -= int64(len(file.content))
	delete(a.files, path)

	go a.notifyWatchers(path)

	return nil
}

// FileExists implements filestore.FileReader
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	_, exists := a.files[path]
	return exists, nil
}

// DirExists implements filestore.FileReader
func (a *Adapter) DirExists(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	_, exists := a.dirs[path]
	return exists, nil
}

// Stat implements filestore.FileReader
func (a *Adapter) Stat(ctx context.Context, path string) (*filestore.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if file, exists := a.files[path]; exists {
		info := fileInfo(path, file)
		return &info, nil
	}
	if dir, exists := a.dirs[path]; exists {
		info := dirInfo(path, dir)
		return &info, nil
	}

	return nil, &filestore.PathError{Op: "stat", Path: path, Err: filestore.ErrNotExist}
}

// ListContents implements filestore.FileReader. Entries are sorted by path.
func (a *Adapter) ListContents(ctx context.Context, path string, recursive bool) ([]filestore.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, exists := a.dirs[path]; !exists {
		if _, isFile := a.files[path]; isFile {
			return nil, &filestore.PathError{Op: "listcontents", Path: path, Err: filestore.ErrNotDir}
		}
		return nil, &filestore.PathError{Op: "listcontents", Path: path, Err: filestore.ErrNotExist}
	}

	var files []filestore.FileInfo
	for filePath, file := range a.files {
		if isChild(path, filePath, recursive) {
			files = append(files, fileInfo(filePath, file))
		}
	}
	for dirPath, dir := range a.dirs {
		if dirPath != path && isChild(path, dirPath, recursive) {
			files = append(files, dirInfo(dirPath, dir))
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

// CreateDir implements filestore.FileWriter
func (a *Adapter) CreateDir(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	path = normalizePath(path)
	if !isValidPath(path) {
		return &filestore.PathError{Op: "createdir", Path: path, Err: filestore.ErrNotAllowed}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.files[path]; exists {
		return &filestore.PathError{Op: "createdir", Path: path, Err: filestore.ErrExist}
	}

	a.ensureParentDirs(path)
	if _, exists := a.dirs[path]; !exists {
		a.dirs[path] = &memoryDir{modTime: time.Now()}
	}

	return nil
}

// DeleteDir implements filestore.FileWriter
func (a *Adapter) DeleteDir(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	path = normalizePath(path)
	if path == "" {
		return &filestore.PathError{Op: "deletedir", Path: path, Err: filestore.ErrNotAllowed}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.dirs[path]; !exists {
		if _, isFile := a.files[path]; isFile {
			return &filestore.PathError{Op: "deletedir", Path: path, Err: filestore.ErrNotDir}
		}
		return &filestore.PathError{Op: "deletedir", Path: path, Err: filestore.ErrNotExist}
	}

	prefix := path + "/"
	var deletedPaths []string

	for filePath, file := range a.files {
		if strings.HasPrefix(filePath, prefix) {
			a.size -= int64(len(file.content))
			deletedPaths = append(deletedPaths, filePath)
			delete(a.files, filePath)
		}
	}
	for dirPath := range a.dirs {
		if dirPath == path || strings.HasPrefix(dirPath, prefix) {
			delete(a.dirs, dirPath)
		}
	}

	if len(deletedPaths) > 0 {
		go func() {
			for _, p := range deletedPaths {
				a.notifyWatchers(p)
			}
		}()
	}

	return nil
}

// Clear removes all files and directories from the memory filesystem
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.files = make(map[string]*memoryFile)
	a.dirs = map[string]*memoryDir{"": {modTime: time.Now()}}
	a.size = 0
}

// Size returns the current total size of all stored files
func (a *Adapter) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// FileCount returns the number of files stored
func (a *Adapter) FileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.files)
}

// ensureParentDirs creates all parent directories for a given path.
// Must be called with lock held.
func (a *Adapter) ensureParentDirs(path string) {
	for dir := pathpkg.Dir(path); dir != "." && dir != "/" && dir != ""; dir = pathpkg.Dir(dir) {
		if _, exists := a.dirs[dir]; !exists {
			a.dirs[dir] = &memoryDir{modTime: time.Now()}
		}
	}
}

// Checksum implements filestore.CanChecksum for in-memory files.
func (a *Adapter) Checksum(ctx context.Context, path string, algorithm filestore.ChecksumAlgorithm) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[path]
	if !exists {
		return "", &filestore.PathError{Op: "checksum", Path: path, Err: filestore.ErrNotExist}
	}

	checksum, err := filestore.CalculateChecksum(bytes.NewReader(file.content), algorithm)
	if err != nil {
		return "", &filestore.PathError{Op: "checksum", Path: path, Err: err}
	}

	return checksum, nil
}

// Watch implements filestore.CanWatch for in-memory file change detection.
// Supports glob patterns like "**/library.json", "*.json", "dev/*".
func (a *Adapter) Watch(ctx context.Context, filter string) (filestore.ChangeToken, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	g, err := glob.Compile(filter)
	if err != nil {
		return nil, &filestore.PathError{Op: "watch", Path: filter, Err: err}
	}

	token := filestore.NewCallbackChangeToken()

	a.watchMu.Lock()
	a.watches = append(a.watches, &watchEntry{filter: g, token: token})
	a.watchMu.Unlock()

	// Drop the subscription once it fired or the caller lost interest
	go func() {
		done := make(chan struct{})
		unregister := token.RegisterChangeCallback(func() { close(done) })
		defer unregister()
		select {
		case <-ctx.Done():
		case <-done:
		}
		a.removeWatch(token)
	}()

	return token, nil
}

// notifyWatchers signals all watchers whose filter matches the given path
func (a *Adapter) notifyWatchers(path string) {
	a.watchMu.RLock()
	var matched []*filestore.CallbackChangeToken
	for _, entry := range a.watches {
		if entry.filter.Match(path) {
			matched = append(matched, entry.token)
		}
	}
	a.watchMu.RUnlock()

	for _, token := range matched {
		token.SignalChange()
	}
}

// removeWatch removes a watch entry by token
func (a *Adapter) removeWatch(token *filestore.CallbackChangeToken) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	for i, entry := range a.watches {
		if entry.token == token {
			a.watches[i] = a.watches[len(a.watches)-1]
			a.watches = a.watches[:len(a.watches)-1]
			return
		}
	}
}

// isChild reports whether p lies below dir, directly unless recursive.
func isChild(dir, p string, recursive bool) bool {
	rel := p
	if dir != "" {
		if !strings.HasPrefix(p, dir+"/") {
			return false
		}
		rel = strings.TrimPrefix(p, dir+"/")
	}
	if rel == "" {
		return false
	}
	return recursive || !strings.Contains(rel, "/")
}

func fileInfo(path string, file *memoryFile) filestore.FileInfo {
	return filestore.FileInfo{
		Name:        pathpkg.Base(path),
		Path:        path,
		Size:        int64(len(file.content)),
		ModTime:     file.modTime,
		ContentType: file.contentType,
		Metadata:    file.metadata,
	}
}

func dirInfo(path string, dir *memoryDir) filestore.FileInfo {
	return filestore.FileInfo{
		Name:    pathpkg.Base(path),
		Path:    path,
		ModTime: dir.modTime,
		IsDir:   true,
	}
}

// normalizePath turns any caller path into the slash separated, root
// relative key used by the maps
func normalizePath(path string) string {
	path = strings.TrimPrefix(pathpkg.Clean("/"+path), "/")
	if path == "." {
		return ""
	}
	return path
}

// isValidPath checks if a path is valid (no directory traversal)
func isValidPath(path string) bool {
	return !strings.Contains(path, "..")
}

// detectContentType determines the content type of a file
func detectContentType(path string, data []byte) string {
	if ext := pathpkg.Ext(path); ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}

	if len(data) > 0 {
		return http.DetectContentType(data)
	}

	return "application/octet-stream"
}

var (
	_ filestore.FileSystem  = (*Adapter)(nil)
	_ filestore.CanChecksum = (*Adapter)(nil)
	_ filestore.CanWatch    = (*Adapter)(nil)
)
