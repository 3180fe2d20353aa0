package filestore

import (
	"context"
	"io"
	"path"
	"strings"
)

// SubReader is a FileReader rooted at a directory of another FileReader.
// Paths passed to it and paths it returns are relative to that directory.
type SubReader struct {
	fs  FileReader
	dir string
}

// Sub returns a FileReader that sees only dir. An empty dir or "." yields
// a reader equivalent to fs.
func Sub(fs FileReader, dir string) *SubReader {
	dir = strings.Trim(path.Clean("/"+dir), "/")
	return &SubReader{fs: fs, dir: dir}
}

// Dir returns the directory the reader is rooted at, relative to the parent.
func (s *SubReader) Dir() string {
	return s.dir
}

func (s *SubReader) join(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if s.dir == "" {
		return p
	}
	if p == "" {
		return s.dir
	}
	return s.dir + "/" + p
}

func (s *SubReader) trim(p string) string {
	p = strings.TrimPrefix(p, "/")
	if s.dir == "" {
		return p
	}
	if p == s.dir {
		return ""
	}
	return strings.TrimPrefix(p, s.dir+"/")
}

// Read implements FileReader.
func (s *SubReader) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	return s.fs.Read(ctx, s.join(p))
}

// ReadAll implements FileReader.
func (s *SubReader) ReadAll(ctx context.Context, p string) ([]byte, error) {
	return s.fs.ReadAll(ctx, s.join(p))
}

// FileExists implements FileReader.
func (s *SubReader) FileExists(ctx context.Context, p string) (bool, error) {
	return s.fs.FileExists(ctx, s.join(p))
}

// DirExists implements FileReader.
func (s *SubReader) DirExists(ctx context.Context, p string) (bool, error) {
	return s.fs.DirExists(ctx, s.join(p))
}

// Stat implements FileReader. The returned path is relative to the sub directory.
func (s *SubReader) Stat(ctx context.Context, p string) (*FileInfo, error) {
	info, err := s.fs.Stat(ctx, s.join(p))
	if err != nil {
		return nil, err
	}
	info.Path = s.trim(info.Path)
	return info, nil
}

// ListContents implements FileReader. Returned paths are relative to the sub directory.
func (s *SubReader) ListContents(ctx context.Context, p string, recursive bool) ([]FileInfo, error) {
	files, err := s.fs.ListContents(ctx, s.join(p), recursive)
	if err != nil {
		return nil, err
	}
	for i := range files {
		files[i].Path = s.trim(files[i].Path)
	}
	return files, nil
}

// Checksum implements CanChecksum by delegating to the parent reader.
func (s *SubReader) Checksum(ctx context.Context, p string, algorithm ChecksumAlgorithm) (string, error) {
	return Checksum(ctx, s.fs, s.join(p), algorithm)
}

var (
	_ FileReader  = (*SubReader)(nil)
	_ CanChecksum = (*SubReader)(nil)
)
