package libkit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LibraryName identifies a library by machine name and major/minor version.
// The patch version is deliberately not part of the identity.
type LibraryName struct {
	MachineName  string `json:"machineName" yaml:"machineName"`
	MajorVersion int    `json:"majorVersion" yaml:"majorVersion"`
	MinorVersion int    `json:"minorVersion" yaml:"minorVersion"`
}

// UberName returns the canonical key of the library, e.g. "H5P.JoubelUI-1.3".
func (n LibraryName) UberName() string {
	return fmt.Sprintf("%s-%d.%d", n.MachineName, n.MajorVersion, n.MinorVersion)
}

// String implements fmt.Stringer.
func (n LibraryName) String() string {
	return n.UberName()
}

// Equal reports whether both names identify the same library.
func (n LibraryName) Equal(other LibraryName) bool {
	return n == other
}

// Validate checks that the name can be turned into an unambiguous uber-name.
func (n LibraryName) Validate() error {
	if n.MachineName == "" {
		return fmt.Errorf("%w: empty machine name", ErrInvalidUberName)
	}
	if strings.ContainsAny(n.MachineName, " \t\r\n/\\") {
		return fmt.Errorf("%w: machine name %q contains whitespace or path separators", ErrInvalidUberName, n.MachineName)
	}
	if n.MajorVersion < 0 || n.MinorVersion < 0 {
		return fmt.Errorf("%w: negative version in %s", ErrInvalidUberName, n.UberName())
	}
	return nil
}

// ParseUberName is the inverse of UberName. The version suffix is taken
// from the last dash so machine names may contain dashes themselves.
func ParseUberName(uberName string) (LibraryName, error) {
	idx := strings.LastIndex(uberName, "-")
	if idx <= 0 || idx == len(uberName)-1 {
		return LibraryName{}, fmt.Errorf("%w: %q", ErrInvalidUberName, uberName)
	}

	major, minor, ok := strings.Cut(uberName[idx+1:], ".")
	if !ok {
		return LibraryName{}, fmt.Errorf("%w: %q", ErrInvalidUberName, uberName)
	}
	majorVersion, err := strconv.Atoi(major)
	if err != nil {
		return LibraryName{}, fmt.Errorf("%w: %q", ErrInvalidUberName, uberName)
	}
	minorVersion, err := strconv.Atoi(minor)
	if err != nil {
		return LibraryName{}, fmt.Errorf("%w: %q", ErrInvalidUberName, uberName)
	}

	name := LibraryName{
		MachineName:  uberName[:idx],
		MajorVersion: majorVersion,
		MinorVersion: minorVersion,
	}
	if err := name.Validate(); err != nil {
		return LibraryName{}, err
	}
	return name, nil
}

// Dependency references another library from library.json.
type Dependency = LibraryName

// Path points at a file inside a library, as used by preloadedJs/preloadedCss.
type Path struct {
	Path string `json:"path"`
}

// CoreAPI is the minimum editor core version a library requires.
type CoreAPI struct {
	MajorVersion int `json:"majorVersion"`
	MinorVersion int `json:"minorVersion"`
}

// LibraryMetadata is the content of a library.json file. Only the embedded
// LibraryName takes part in identity checks; the rest is carried through.
type LibraryMetadata struct {
	LibraryName

	Title                 string       `json:"title"`
	PatchVersion          int          `json:"patchVersion"`
	Runnable              flexBool     `json:"runnable,omitempty"`
	Description           string       `json:"description,omitempty"`
	Author                string       `json:"author,omitempty"`
	License               string       `json:"license,omitempty"`
	FullScreen            flexBool     `json:"fullscreen,omitempty"`
	EmbedTypes            []string     `json:"embedTypes,omitempty"`
	CoreAPI               *CoreAPI     `json:"coreApi,omitempty"`
	PreloadedJS           []Path       `json:"preloadedJs,omitempty"`
	PreloadedCSS          []Path       `json:"preloadedCss,omitempty"`
	PreloadedDependencies []Dependency `json:"preloadedDependencies,omitempty"`
	EditorDependencies    []Dependency `json:"editorDependencies,omitempty"`
	DynamicDependencies   []Dependency `json:"dynamicDependencies,omitempty"`
}

// InstalledLibrary is what a storage reports after installing or updating.
type InstalledLibrary struct {
	LibraryMetadata
	Restricted bool `json:"restricted"`
}

// flexBool accepts both JSON booleans and the 0/1 integers found in many
// hand written library.json files.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

func (b flexBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// decodeName parses the identity fields of a library.json document.
func decodeName(data []byte) (LibraryName, error) {
	var name LibraryName
	if err := json.Unmarshal(data, &name); err != nil {
		return LibraryName{}, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if err := checkIdentity(name); err != nil {
		return LibraryName{}, err
	}
	return name, nil
}

// decodeMetadata parses a full library.json document.
func decodeMetadata(data []byte) (*LibraryMetadata, error) {
	var metadata LibraryMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if err := checkIdentity(metadata.LibraryName); err != nil {
		return nil, err
	}
	return &metadata, nil
}

// checkIdentity rejects names that cannot stand for an installed library.
// Negative versions would make uber-names ambiguous: {X-,1,2} and {X,-1,2}
// both render as "X--1.2".
func checkIdentity(name LibraryName) error {
	if name.MachineName == "" {
		return fmt.Errorf("%w: missing machineName", ErrMalformedMetadata)
	}
	if name.MajorVersion < 0 || name.MinorVersion < 0 {
		return fmt.Errorf("%w: negative version in %s", ErrMalformedMetadata, name.UberName())
	}
	return nil
}

// filterByMachineName keeps the names whose machine name is listed. An
// empty filter keeps everything.
func filterByMachineName(names []LibraryName, machineNames []string) []LibraryName {
	if len(machineNames) == 0 {
		return names
	}
	filtered := names[:0:0]
	for _, name := range names {
		for _, machineName := range machineNames {
			if name.MachineName == machineName {
				filtered = append(filtered, name)
				break
			}
		}
	}
	return filtered
}
