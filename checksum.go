package libkit

import (
	"context"

	"github.com/gobeaver/libkit/filestore"
)

// FileChecksum hashes a library file served by any storage, including an
// aggregate. The content is streamed through the hasher, so it works for
// storages that know nothing about checksums.
func FileChecksum(ctx context.Context, storage LibraryStorage, name LibraryName, file string, algorithm filestore.ChecksumAlgorithm) (string, error) {
	rc, err := storage.GetFileStream(ctx, name, file)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	sum, err := filestore.CalculateChecksum(rc, algorithm)
	if err != nil {
		return "", &LibraryError{Op: "checksum", Library: name, Err: err}
	}
	return sum, nil
}
