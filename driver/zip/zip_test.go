package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gobeaver/libkit/filestore"
	"github.com/gobeaver/libkit/filevalidator"
)

// packageFiles mirrors an .h5p package: content plus library directories.
var packageFiles = map[string]string{
	"h5p.json":                          `{"title": "Course"}`,
	"content/content.json":              `{}`,
	"H5P.JoubelUI-1.3/library.json":     `{"machineName": "H5P.JoubelUI", "majorVersion": 1, "minorVersion": 3}`,
	"H5P.JoubelUI-1.3/js/joubel-ui.js":  "H5P.JoubelUI = {};",
	"H5P.JoubelUI-1.3/language/de.json": `{}`,
}

func TestOpen(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "course.h5p")
	createTestZip(t, zipPath, packageFiles, true)

	t.Run("opens existing archive", func(t *testing.T) {
		a, err := Open(zipPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Path() != zipPath {
			t.Errorf("expected path '%s', got '%s'", zipPath, a.Path())
		}

		exists, _ := a.FileExists(context.Background(), "H5P.JoubelUI-1.3/library.json")
		if !exists {
			t.Error("expected library.json to exist")
		}
	})

	t.Run("fails for non-existent file", func(t *testing.T) {
		if _, err := Open(filepath.Join(t.TempDir(), "missing.h5p")); err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("fails for a file that is not an archive", func(t *testing.T) {
		notZip := filepath.Join(t.TempDir(), "broken.h5p")
		os.WriteFile(notZip, []byte("not a zip"), 0o644)

		if _, err := Open(notZip); err == nil {
			t.Error("expected error for invalid archive")
		}
	})

	t.Run("registers the zip driver", func(t *testing.T) {
		fs, err := filestore.Open("zip", zipPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exists, _ := fs.DirExists(context.Background(), "content"); !exists {
			t.Error("expected content directory to exist")
		}
	})
}

func TestOpen_RejectsHostileArchives(t *testing.T) {
	bomb := map[string]string{
		"h5p.json":          `{"title": "Course"}`,
		"content/zeros.bin": strings.Repeat("\x00", 10<<20),
	}

	t.Run("zip bomb from file", func(t *testing.T) {
		zipPath := filepath.Join(t.TempDir(), "bomb.h5p")
		createTestZip(t, zipPath, bomb, false)

		_, err := Open(zipPath)
		if !filevalidator.IsErrorOfType(err, filevalidator.ErrorTypeContent) {
			t.Fatalf("expected content validation error, got %v", err)
		}
		var pathErr *filestore.PathError
		if !errors.As(err, &pathErr) || pathErr.Path != zipPath {
			t.Errorf("expected path error for %s, got %v", zipPath, err)
		}
	})

	t.Run("zip bomb from bytes", func(t *testing.T) {
		_, err := NewFromBytes("bomb.h5p", buildZip(t, bomb, false))
		if !filevalidator.IsErrorOfType(err, filevalidator.ErrorTypeContent) {
			t.Fatalf("expected content validation error, got %v", err)
		}
	})

	t.Run("path traversal", func(t *testing.T) {
		data := buildZip(t, map[string]string{"../outside.js": "x"}, false)
		if _, err := NewFromBytes("evil.h5p", data); !filevalidator.IsErrorOfType(err, filevalidator.ErrorTypeFileName) {
			t.Fatalf("expected filename validation error, got %v", err)
		}
	})

	t.Run("validation can be replaced", func(t *testing.T) {
		a, err := NewFromBytes("bomb.h5p", buildZip(t, bomb, false), WithArchiveValidator(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := a.Stat(context.Background(), "content/zeros.bin")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Size != 10<<20 {
			t.Errorf("expected size %d, got %d", 10<<20, info.Size)
		}
	})
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, packageFiles, false)

	data, err := a.ReadAll(ctx, "/H5P.JoubelUI-1.3/js/joubel-ui.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "H5P.JoubelUI = {};" {
		t.Errorf("unexpected content '%s'", string(data))
	}

	rc, err := a.Read(ctx, "h5p.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rc.Close()

	if _, err := a.Read(ctx, "missing.json"); !filestore.IsNotExist(err) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if _, err := a.Read(ctx, "content"); !errors.Is(err, filestore.ErrIsDir) {
		t.Errorf("expected ErrIsDir, got %v", err)
	}
}

func TestImplicitDirectories(t *testing.T) {
	ctx := context.Background()
	// archives written without directory entries still expose the tree
	a := newTestAdapter(t, packageFiles, false)

	for _, dir := range []string{"", "content", "H5P.JoubelUI-1.3", "H5P.JoubelUI-1.3/language"} {
		if exists, _ := a.DirExists(ctx, dir); !exists {
			t.Errorf("expected directory '%s' to exist", dir)
		}
	}
	if exists, _ := a.FileExists(ctx, "content"); exists {
		t.Error("expected directory not to count as file")
	}
}

func TestStat(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, packageFiles, true)

	info, err := a.Stat(ctx, "H5P.JoubelUI-1.3/js/joubel-ui.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "joubel-ui.js" || info.Size != int64(len("H5P.JoubelUI = {};")) || info.IsDir {
		t.Errorf("unexpected file info %+v", info)
	}
	if !strings.Contains(info.ContentType, "javascript") {
		t.Errorf("expected javascript content type, got '%s'", info.ContentType)
	}

	if _, err := a.Stat(ctx, "nope"); !filestore.IsNotExist(err) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestListContents(t *testing.T) {
	ctx := context.Background()

	for _, withDirs := range []bool{true, false} {
		a := newTestAdapter(t, packageFiles, withDirs)

		t.Run("lists the archive root", func(t *testing.T) {
			files, err := a.ListContents(ctx, "", false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertPaths(t, files, "H5P.JoubelUI-1.3", "content", "h5p.json")
		})

		t.Run("lists a library recursively", func(t *testing.T) {
			files, err := a.ListContents(ctx, "H5P.JoubelUI-1.3", true)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertPaths(t, files,
				"H5P.JoubelUI-1.3/js",
				"H5P.JoubelUI-1.3/js/joubel-ui.js",
				"H5P.JoubelUI-1.3/language",
				"H5P.JoubelUI-1.3/language/de.json",
				"H5P.JoubelUI-1.3/library.json",
			)
		})

		t.Run("fails for missing directories and files", func(t *testing.T) {
			if _, err := a.ListContents(ctx, "nope", false); !filestore.IsNotExist(err) {
				t.Errorf("expected ErrNotExist, got %v", err)
			}
			if _, err := a.ListContents(ctx, "h5p.json", false); !errors.Is(err, filestore.ErrNotDir) {
				t.Errorf("expected ErrNotDir, got %v", err)
			}
		})
	}
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, packageFiles, false)

	errs := []error{
		a.Write(ctx, "new.txt", strings.NewReader("x")),
		a.Delete(ctx, "h5p.json"),
		a.CreateDir(ctx, "dir"),
		a.DeleteDir(ctx, "content"),
	}
	for i, err := range errs {
		if !errors.Is(err, filestore.ErrReadOnly) {
			t.Errorf("operation %d: expected ErrReadOnly, got %v", i, err)
		}
	}

	token, err := a.Watch(ctx, "**/library.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.ActiveChangeCallbacks() {
		t.Error("expected archive watch to be inactive")
	}
}

func TestChecksum(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, map[string]string{"file.txt": "hello"}, false)

	got, err := a.Checksum(ctx, "file.txt", filestore.ChecksumSHA256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func assertPaths(t *testing.T, files []filestore.FileInfo, expected ...string) {
	t.Helper()
	if len(files) != len(expected) {
		t.Fatalf("expected %d items, got %d", len(expected), len(files))
	}
	for i, p := range expected {
		if files[i].Path != p {
			t.Errorf("expected path[%d]='%s', got '%s'", i, p, files[i].Path)
		}
	}
}

func newTestAdapter(t *testing.T, files map[string]string, withDirs bool) *Adapter {
	t.Helper()
	a, err := NewFromBytes("test.zip", buildZip(t, files, withDirs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func createTestZip(t *testing.T, zipPath string, files map[string]string, withDirs bool) {
	t.Helper()
	if err := os.WriteFile(zipPath, buildZip(t, files, withDirs), 0o644); err != nil {
		t.Fatalf("failed to write test zip: %v", err)
	}
}

// buildZip creates an archive, optionally with explicit directory entries.
func buildZip(t *testing.T, files map[string]string, withDirs bool) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	if withDirs {
		dirs := make(map[string]bool)
		for name := range files {
			for dir := filepath.ToSlash(filepath.Dir(name)); dir != "." && dir != "/"; dir = filepath.ToSlash(filepath.Dir(dir)) {
				dirs[dir] = true
			}
		}
		for dir := range dirs {
			header := &zip.FileHeader{Name: dir + "/", Method: zip.Store}
			header.SetMode(os.ModeDir | 0o755)
			if _, err := w.CreateHeader(header); err != nil {
				t.Fatalf("failed to create directory in test zip: %v", err)
			}
		}
	}

	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create file in test zip: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write file in test zip: %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close test zip: %v", err)
	}
	return buf.Bytes()
}
