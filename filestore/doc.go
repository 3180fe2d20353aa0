// Package filestore is the byte-level file capability that library storages
// are built on.
//
// It separates read access ([FileReader]) from write access ([FileWriter]);
// [FileSystem] combines both. Library storages that only ever read (flexible
// and single-library storages) accept a [FileReader], the canonical storage
// that receives installs needs a [FileSystem].
//
// # Drivers
//
//   - Local filesystem (github.com/gobeaver/libkit/driver/local)
//   - In-memory (github.com/gobeaver/libkit/driver/memory)
//
// Drivers register themselves on import and can then be opened by name:
//
//	import _ "github.com/gobeaver/libkit/driver/local"
//
//	fs, err := filestore.Open("local", "./libraries")
//
// # Optional Capabilities
//
// Drivers may implement [CanChecksum] and [CanWatch]. Use type assertions to
// check for support:
//
//	if watcher, ok := fs.(filestore.CanWatch); ok {
//	    token, err := watcher.Watch(ctx, "**/library.json")
//	}
//
// # Read-only views
//
// [NewReadOnlyFileSystem] wraps any [FileSystem] so that every write fails
// with [ErrReadOnly]. [Sub] narrows a [FileReader] to one directory.
package filestore
