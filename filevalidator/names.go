package filevalidator

import (
	"path"
	"strings"
)

// LibraryExtensions are the file types a library may ship: scripts and
// styles plus the media and document types content files may reference.
var LibraryExtensions = []string{
	".js", ".css", ".json",
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".svg", ".webp",
	".eot", ".ttf", ".woff", ".woff2", ".otf",
	".webm", ".mp4", ".ogg", ".mp3", ".m4a", ".wav",
	".txt", ".pdf", ".rtf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".odt", ".ods", ".odp", ".xml", ".csv", ".diff", ".patch", ".md", ".textile",
	".vtt", ".webvtt", ".gltf", ".glb",
}

// NameValidator checks file names, relative to a library directory, before
// they are written.
type NameValidator struct {
	allowed       map[string]bool
	blocked       map[string]bool
	maxNameLength int
}

// Builder provides a fluent API for constructing a NameValidator.
type Builder struct {
	allowed       []string
	blocked       []string
	maxNameLength int
}

// NewBuilder creates a builder without restrictions.
func NewBuilder() *Builder {
	return &Builder{}
}

// Extensions adds allowed extensions, e.g. ".js". Once any extension is
// allowed, every other one is refused.
func (b *Builder) Extensions(exts ...string) *Builder {
	b.allowed = append(b.allowed, exts...)
	return b
}

// BlockExtensions adds extensions that are refused even if allowed.
func (b *Builder) BlockExtensions(exts ...string) *Builder {
	b.blocked = append(b.blocked, exts...)
	return b
}

// MaxNameLength limits the length of the base name.
func (b *Builder) MaxNameLength(length int) *Builder {
	b.maxNameLength = length
	return b
}

// Build returns the configured validator.
func (b *Builder) Build() *NameValidator {
	return &NameValidator{
		allowed:       extensionSet(b.allowed),
		blocked:       extensionSet(b.blocked),
		maxNameLength: b.maxNameLength,
	}
}

// ForLibraryFiles accepts LibraryExtensions only.
func ForLibraryFiles() *NameValidator {
	return NewBuilder().Extensions(LibraryExtensions...).MaxNameLength(255).Build()
}

// ValidateName checks a slash separated file name.
func (v *NameValidator) ValidateName(name string) error {
	base := path.Base(name)
	if name == "" || base == "." || base == "/" {
		return NewValidationError(ErrorTypeFileName, "empty filename")
	}
	if v.maxNameLength > 0 && len(base) > v.maxNameLength {
		return validationErrorf(ErrorTypeFileName, "filename exceeds maximum length of %d characters", v.maxNameLength)
	}
	if strings.ContainsRune(name, 0) || unsafeEntryName(name) {
		return validationErrorf(ErrorTypeFileName, "invalid filename %q", name)
	}

	ext := strings.ToLower(path.Ext(base))
	if v.blocked[ext] {
		return validationErrorf(ErrorTypeExtension, "file extension %s is blocked", ext)
	}
	if len(v.allowed) > 0 && !v.allowed[ext] {
		if ext == "" {
			return validationErrorf(ErrorTypeExtension, "file %s has no extension", base)
		}
		return validationErrorf(ErrorTypeExtension, "file extension %s is not allowed", ext)
	}
	return nil
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}
