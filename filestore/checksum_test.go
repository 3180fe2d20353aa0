package filestore_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gobeaver/libkit/filestore"
)

func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		algorithm filestore.ChecksumAlgorithm
		want      string
	}{
		{filestore.ChecksumMD5, "5d41402abc4b2a76b9719d911017c592"},
		{filestore.ChecksumSHA1, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{filestore.ChecksumSHA256, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{filestore.ChecksumCRC32, "3610a686"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			got, err := filestore.CalculateChecksum(strings.NewReader("hello"), tt.algorithm)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	t.Run("xxhash is stable", func(t *testing.T) {
		a, err := filestore.CalculateChecksum(strings.NewReader("hello"), filestore.ChecksumXXHash)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, _ := filestore.CalculateChecksum(strings.NewReader("hello"), filestore.ChecksumXXHash)
		if a != b || len(a) != 16 {
			t.Errorf("expected stable 16 char digest, got %s and %s", a, b)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := filestore.NewHasher("whirlpool"); !errors.Is(err, filestore.ErrNotSupported) {
			t.Errorf("expected ErrNotSupported, got %v", err)
		}
	})
}

type plainReader struct {
	filestore.FileReader
}

func TestChecksumStreamsWithoutNativeSupport(t *testing.T) {
	ctx := context.Background()
	fs := newMemory(t, map[string]string{"file.txt": "hello"})

	got, err := filestore.Checksum(ctx, plainReader{fs}, "file.txt", filestore.ChecksumSHA256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected checksum %s", got)
	}

	if _, err := filestore.Checksum(ctx, plainReader{fs}, "missing.txt", filestore.ChecksumSHA256); !filestore.IsNotExist(err) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}
