package libkit

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Storage kinds understood by the built-in factories.
const (
	KindDirectory = "directory"
	KindFlexible  = "flexible"
	KindSingle    = "single"
)

// Layout describes the storages of an aggregate and how they are combined.
//
//	write: main
//	storages:
//	  - {name: single, kind: single, path: ./single}
//	  - {name: dev, kind: flexible, path: ./dev, watch: true}
//	  - {name: course, kind: flexible, driver: zip, path: ./course.h5p}
//	  - {name: main, kind: directory, path: ./libraries}
//	read: [single, dev, course, main]
type Layout struct {
	Write    string        `yaml:"write"`
	Storages []StorageSpec `yaml:"storages"`
	Read     []string      `yaml:"read"`
}

// StorageSpec declares one named storage of a layout.
type StorageSpec struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch,omitempty"`
	// Driver overrides the layout wide file store driver, e.g. "zip" for
	// an .h5p package.
	Driver string `yaml:"driver,omitempty"`
}

// LoadLayout reads and validates a YAML layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	layout, err := ParseLayout(data)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return layout, nil
}

// ParseLayout decodes and validates a YAML layout.
func ParseLayout(data []byte) (*Layout, error) {
	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &layout, nil
}

// LayoutFromConfig builds the layout described by the directory settings of
// cfg. Read order is single, dev, package, library and then the write
// directory.
func LayoutFromConfig(cfg *Config) *Layout {
	layout := &Layout{Write: "write"}

	add := func(prefix string, spec StorageSpec, paths []string) {
		for i, p := range paths {
			spec.Name = prefix + "-" + strconv.Itoa(i)
			spec.Path = p
			layout.Storages = append(layout.Storages, spec)
			layout.Read = append(layout.Read, spec.Name)
		}
	}
	add("single", StorageSpec{Kind: KindSingle}, splitList(cfg.SingleDirs))
	add("dev", StorageSpec{Kind: KindFlexible, Watch: cfg.WatchDevDirs}, splitList(cfg.DevDirs))
	add("package", StorageSpec{Kind: KindFlexible, Driver: "zip"}, splitList(cfg.PackageFiles))
	add("library", StorageSpec{Kind: KindDirectory}, splitList(cfg.LibraryDirs))

	layout.Storages = append(layout.Storages, StorageSpec{Name: "write", Kind: KindDirectory, Path: cfg.WriteDir})
	layout.Read = append(layout.Read, "write")
	return layout
}

// Storage returns the StorageSpec with the given name.
func (l *Layout) Storage(name string) (StorageSpec, bool) {
	for _, spec := range l.Storages {
		if spec.Name == name {
			return spec, true
		}
	}
	return StorageSpec{}, false
}

// Validate checks names, references and that the write target can be written.
func (l *Layout) Validate() error {
	if len(l.Storages) == 0 {
		return errors.New("layout has no storages")
	}

	seen := make(map[string]bool, len(l.Storages))
	for _, spec := range l.Storages {
		if spec.Name == "" {
			return errors.New("storage without name")
		}
		if seen[spec.Name] {
			return fmt.Errorf("duplicate storage %q", spec.Name)
		}
		seen[spec.Name] = true

		if !storageKindRegistered(spec.Kind) {
			return fmt.Errorf("storage %q: unknown kind %q", spec.Name, spec.Kind)
		}
		if spec.Path == "" {
			return fmt.Errorf("storage %q: path is required", spec.Name)
		}
	}

	write, ok := l.Storage(l.Write)
	if !ok {
		return fmt.Errorf("write storage %q is not declared", l.Write)
	}
	if write.Kind != KindDirectory {
		return fmt.Errorf("write storage %q must be of kind %s, got %s", write.Name, KindDirectory, write.Kind)
	}

	for _, name := range l.Read {
		if !seen[name] {
			return fmt.Errorf("read storage %q is not declared", name)
		}
	}
	return nil
}
