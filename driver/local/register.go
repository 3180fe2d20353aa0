package local

import "github.com/gobeaver/libkit/filestore"

func init() {
	filestore.RegisterDriver("local", func(root string) (filestore.FileSystem, error) {
		return New(root)
	})
}
