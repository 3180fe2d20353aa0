package libkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gobeaver/libkit/filestore"
	"github.com/gobeaver/libkit/filevalidator"
)

// BuildOptions is what a StorageFactory gets besides the StorageSpec.
type BuildOptions struct {
	// Driver is the filestore driver name, e.g. "local". A spec's own
	// driver wins.
	Driver string
	Logger logrus.FieldLogger
	Ignore *IgnoreMatcher
	// Files restricts the names of files added to writable storages.
	Files *filevalidator.NameValidator
}

func (o BuildOptions) storageOptions(spec StorageSpec) []StorageOption {
	logger := o.Logger
	if logger == nil {
		logger = discardLogger()
	}
	opts := []StorageOption{
		WithLogger(logger.WithField("storage", spec.Name)),
		WithLocation(spec.Path),
	}
	if o.Ignore != nil {
		opts = append(opts, WithIgnorePatterns(o.Ignore))
	}
	if o.Files != nil {
		opts = append(opts, WithFileValidator(o.Files))
	}
	return opts
}

func (o BuildOptions) open(spec StorageSpec) (filestore.FileSystem, error) {
	driver := o.Driver
	if spec.Driver != "" {
		driver = spec.Driver
	}
	return filestore.Open(driver, spec.Path)
}

// readOnly opens the storage directory behind a read-only wrapper that logs
// refused writes.
func (o BuildOptions) readOnly(spec StorageSpec) (filestore.FileSystem, error) {
	fs, err := o.open(spec)
	if err != nil {
		return nil, err
	}
	logger := o.Logger
	if logger == nil {
		logger = discardLogger()
	}
	return filestore.NewReadOnlyFileSystem(fs, filestore.WithWriteAttemptHandler(func(op, path string) {
		logger.WithFields(logrus.Fields{
			"storage": spec.Name,
			"op":      op,
			"path":    path,
		}).Warn("write refused by read-only storage")
	})), nil
}

// StorageFactory builds the storage declared by spec. ctx bounds the
// lifetime of background work such as directory watches.
type StorageFactory func(ctx context.Context, spec StorageSpec, opts BuildOptions) (LibraryStorage, error)

var (
	storageFactories = map[string]StorageFactory{
		KindDirectory: newDirectoryKind,
		KindFlexible:  newFlexibleKind,
		KindSingle:    newSingleKind,
	}
	storageFactoryMutex sync.RWMutex
)

// RegisterStorageKind registers a storage factory for layouts.
func RegisterStorageKind(kind string, factory StorageFactory) {
	storageFactoryMutex.Lock()
	defer storageFactoryMutex.Unlock()
	storageFactories[kind] = factory
}

// StorageKinds lists the registered kinds in sorted order.
func StorageKinds() []string {
	storageFactoryMutex.RLock()
	defer storageFactoryMutex.RUnlock()

	kinds := make([]string, 0, len(storageFactories))
	for kind := range storageFactories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func storageKindRegistered(kind string) bool {
	storageFactoryMutex.RLock()
	defer storageFactoryMutex.RUnlock()
	_, ok := storageFactories[kind]
	return ok
}

// CreateStorage builds the storage declared by spec.
func CreateStorage(ctx context.Context, spec StorageSpec, opts BuildOptions) (LibraryStorage, error) {
	storageFactoryMutex.RLock()
	factory, exists := storageFactories[spec.Kind]
	storageFactoryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("storage kind %s not registered", spec.Kind)
	}

	storage, err := factory(ctx, spec, opts)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", spec.Name, err)
	}
	return storage, nil
}

func newDirectoryKind(_ context.Context, spec StorageSpec, opts BuildOptions) (LibraryStorage, error) {
	fs, err := opts.open(spec)
	if err != nil {
		return nil, err
	}
	return NewDirectoryStorage(fs, opts.storageOptions(spec)...), nil
}

func newFlexibleKind(ctx context.Context, spec StorageSpec, opts BuildOptions) (LibraryStorage, error) {
	fs, err := opts.readOnly(spec)
	if err != nil {
		return nil, err
	}
	storage := NewFlexibleDirectoryStorage(fs, opts.storageOptions(spec)...)
	if spec.Watch && !storage.Watch(ctx) && opts.Logger != nil {
		opts.Logger.WithField("storage", spec.Name).Warn("driver cannot watch, directory cache is not reset on changes")
	}
	return storage, nil
}

func newSingleKind(ctx context.Context, spec StorageSpec, opts BuildOptions) (LibraryStorage, error) {
	fs, err := opts.readOnly(spec)
	if err != nil {
		return nil, err
	}
	return NewSingleLibraryStorage(ctx, fs, opts.storageOptions(spec)...)
}
