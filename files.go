package libkit

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/gobeaver/libkit/filestore"
)

// libraryDir is the read side shared by every directory based storage: a
// library living in dir of a file store, with ignored files hidden.
type libraryDir struct {
	files  *filestore.SubReader
	ignore *IgnoreMatcher
}

func newLibraryDir(fs filestore.FileReader, dir string, ignore *IgnoreMatcher) libraryDir {
	return libraryDir{files: filestore.Sub(fs, dir), ignore: ignore}
}

func (d libraryDir) fileExists(ctx context.Context, file string) (bool, error) {
	file = cleanFile(file)
	if file == "" || d.ignore.Match(file) {
		return false, nil
	}
	return d.files.FileExists(ctx, file)
}

func (d libraryDir) open(ctx context.Context, file string) (io.ReadCloser, error) {
	file = cleanFile(file)
	if d.ignore.Match(file) {
		return nil, &filestore.PathError{Op: "read", Path: file, Err: ErrIgnoredFile}
	}
	return d.files.Read(ctx, file)
}

func (d libraryDir) list(ctx context.Context) ([]string, error) {
	entries, err := d.files.ListContents(ctx, "", true)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir || d.ignore.Match(entry.Path) {
			continue
		}
		files = append(files, entry.Path)
	}
	sort.Strings(files)
	return files, nil
}

// languageFiles lists the translation files; a library without a language
// directory simply has none.
func (d libraryDir) languageFiles(ctx context.Context) ([]string, error) {
	exists, err := d.files.DirExists(ctx, LanguageDir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []string{}, nil
	}

	entries, err := d.files.ListContents(ctx, LanguageDir, false)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir || !strings.EqualFold(path.Ext(entry.Path), ".json") {
			continue
		}
		files = append(files, path.Base(entry.Path))
	}
	sort.Strings(files)
	return files, nil
}

func (d libraryDir) hasMetadata(ctx context.Context) (bool, error) {
	return d.files.FileExists(ctx, MetadataFile)
}

func (d libraryDir) name(ctx context.Context) (LibraryName, error) {
	data, err := d.files.ReadAll(ctx, MetadataFile)
	if err != nil {
		return LibraryName{}, err
	}
	return decodeName(data)
}

func (d libraryDir) metadata(ctx context.Context) (*LibraryMetadata, error) {
	data, err := d.files.ReadAll(ctx, MetadataFile)
	if err != nil {
		return nil, err
	}
	return decodeMetadata(data)
}
