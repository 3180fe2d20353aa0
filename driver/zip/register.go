package zip

import "github.com/gobeaver/libkit/filestore"

func init() {
	// root is the archive file rather than a directory
	filestore.RegisterDriver("zip", func(root string) (filestore.FileSystem, error) {
		return Open(root)
	})
}
