// Package libkit resolves content libraries from storage locations that do
// not follow the canonical naming convention and combines several locations
// into one logical storage.
//
// A library is identified by a [LibraryName]: machine name plus major and
// minor version, written as an uber-name such as "H5P.Blanks-1.12". Each
// library directory carries a library.json naming the library it holds.
//
// # Storages
//
// Every storage implements [LibraryStorage]:
//
//   - [DirectoryStorage] keeps libraries in directories named after their
//     uber-name. It is the only storage that accepts writes.
//   - [FlexibleDirectoryStorage] serves libraries from arbitrarily named
//     subdirectories, e.g. source checkouts. A [DirectoryMapper] finds the
//     directory of a library by reading library.json files and caches it.
//   - [SingleLibraryStorage] serves the one library at the root of a
//     directory.
//   - [AggregatingStorage] reads from an ordered list of storages, first
//     match wins, and sends every write to one storage.
//
// Byte-level file access is provided by the filestore package and its
// drivers (driver/local, driver/memory).
//
// # Basic Usage
//
//	dev, _ := local.Open("./dev")
//	main, _ := local.New("./libraries")
//
//	devStorage := libkit.NewFlexibleDirectoryStorage(filestore.NewReadOnlyFileSystem(dev))
//	mainStorage := libkit.NewDirectoryStorage(main)
//
//	storage := libkit.NewAggregatingStorage(mainStorage,
//	    []libkit.LibraryStorage{devStorage, mainStorage})
//
//	name := libkit.LibraryName{MachineName: "H5P.JoubelUI", MajorVersion: 1, MinorVersion: 3}
//	files, err := storage.ListFiles(ctx, name)
//
// # Configuration
//
// [New], [Init] and [Default] build an aggregate from environment variables
// (BEAVER_LIBKIT_*) or from a YAML [Layout]:
//
//	export BEAVER_LIBKIT_WRITE_DIR=./libraries
//	export BEAVER_LIBKIT_DEV_DIRS=./dev
//	export BEAVER_LIBKIT_SINGLE_DIRS=./single
//
//	svc, err := libkit.Default()
//	exists, _ := svc.LibraryExists(ctx, name)
//
// Package manifests (package.json) are never treated as library content; see
// [DefaultIgnorePatterns].
package libkit
