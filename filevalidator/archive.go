package filevalidator

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Size units
const (
	KB int64 = 1 << (10 * (iota + 1))
	MB
	GB
)

// ArchiveValidator screens zip archives before they are unpacked. Only the
// central directory is read, so a hostile archive is rejected without
// inflating any entry.
type ArchiveValidator struct {
	// MaxCompressionRatio bounds the ratio of uncompressed to compressed
	// size, per entry and for the whole archive. Zero disables the check.
	MaxCompressionRatio float64
	// MaxFiles bounds the number of entries, directories included.
	MaxFiles int
	// MaxUncompressedSize bounds the summed uncompressed size of all entries.
	MaxUncompressedSize int64
	// MaxNestedArchives bounds the number of archives inside the archive.
	MaxNestedArchives int
}

// DefaultArchiveValidator returns limits that fit content packages: large
// enough for a package bundling its libraries and media, small enough to
// stop a zip bomb.
func DefaultArchiveValidator() *ArchiveValidator {
	return &ArchiveValidator{
		MaxCompressionRatio: 100,
		MaxFiles:            10000,
		MaxUncompressedSize: 1 * GB,
		MaxNestedArchives:   3,
	}
}

var nestedArchiveExts = map[string]bool{
	".zip": true,
	".h5p": true,
	".jar": true,
	".war": true,
}

// ValidateContent validates the archive read from r, which holds size
// bytes. Readers implementing io.ReaderAt are not buffered.
func (v *ArchiveValidator) ValidateContent(r io.Reader, size int64) error {
	ra, ok := r.(io.ReaderAt)
	if !ok {
		if v.MaxUncompressedSize > 0 && size > v.MaxUncompressedSize {
			return validationErrorf(ErrorTypeSize, "archive of %d bytes exceeds %d bytes", size, v.MaxUncompressedSize)
		}
		data, err := io.ReadAll(io.LimitReader(r, size))
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		ra, size = bytes.NewReader(data), int64(len(data))
	}

	zr, err := zip.NewReader(ra, size)
	// insecure names are reported by Validate
	if errors.Is(err, zip.ErrInsecurePath) {
		err = nil
	}
	if err != nil {
		return validationErrorf(ErrorTypeContent, "invalid zip archive: %v", err)
	}
	return v.Validate(zr, size)
}

// Validate checks an opened archive whose file is size bytes long.
func (v *ArchiveValidator) Validate(zr *zip.Reader, size int64) error {
	if v.MaxFiles > 0 && len(zr.File) > v.MaxFiles {
		return validationErrorf(ErrorTypeContent, "archive contains too many files: %d (max %d)", len(zr.File), v.MaxFiles)
	}

	var total uint64
	nested := 0
	for _, f := range zr.File {
		if unsafeEntryName(f.Name) {
			return validationErrorf(ErrorTypeFileName, "archive entry %q escapes the archive root", f.Name)
		}

		if nestedArchiveExts[strings.ToLower(path.Ext(f.Name))] {
			nested++
			if nested > v.MaxNestedArchives {
				return validationErrorf(ErrorTypeContent, "archive contains too many nested archives (max %d)", v.MaxNestedArchives)
			}
		}

		if v.MaxCompressionRatio > 0 && f.CompressedSize64 > 0 {
			ratio := float64(f.UncompressedSize64) / float64(f.CompressedSize64)
			if ratio > v.MaxCompressionRatio {
				return validationErrorf(ErrorTypeContent, "entry %s has suspicious compression ratio %.1f:1 (max %.1f:1)", f.Name, ratio, v.MaxCompressionRatio)
			}
		}

		total += f.UncompressedSize64
		if v.MaxUncompressedSize > 0 && total > uint64(v.MaxUncompressedSize) {
			return validationErrorf(ErrorTypeSize, "archive expands beyond %d bytes", v.MaxUncompressedSize)
		}
	}

	if v.MaxCompressionRatio > 0 && size > 0 {
		ratio := float64(total) / float64(size)
		if ratio > v.MaxCompressionRatio {
			return validationErrorf(ErrorTypeContent, "archive has suspicious compression ratio %.1f:1 (max %.1f:1)", ratio, v.MaxCompressionRatio)
		}
	}
	return nil
}

// unsafeEntryName reports entry names that are absolute or climb out of
// the archive root.
func unsafeEntryName(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") || (len(name) > 1 && name[1] == ':') {
		return true
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}
