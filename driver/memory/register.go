package memory

import "github.com/gobeaver/libkit/filestore"

// The memory driver ignores root: every Open yields a fresh, empty store.
func init() {
	filestore.RegisterDriver("memory", func(string) (filestore.FileSystem, error) {
		return New(), nil
	})
}
