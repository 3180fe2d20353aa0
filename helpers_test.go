package libkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gobeaver/libkit/driver/memory"
	"github.com/gobeaver/libkit/filestore"
)

var (
	joubelUI = LibraryName{MachineName: "H5P.JoubelUI", MajorVersion: 1, MinorVersion: 3}
	blanks   = LibraryName{MachineName: "H5P.Blanks", MajorVersion: 1, MinorVersion: 12}
	fontIcon = LibraryName{MachineName: "H5P.FontIcons", MajorVersion: 1, MinorVersion: 0}
)

func libraryJSON(name LibraryName) string {
	return fmt.Sprintf(`{
  "title": "%s",
  "machineName": "%s",
  "majorVersion": %d,
  "minorVersion": %d,
  "patchVersion": 4,
  "runnable": 0,
  "preloadedJs": [{"path": "js/main.js"}]
}`, name.MachineName, name.MachineName, name.MajorVersion, name.MinorVersion)
}

// newStore returns a memory file store holding files.
func newStore(t *testing.T, files map[string]string) *memory.Adapter {
	t.Helper()
	fs := memory.New()
	writeFiles(t, fs, files)
	return fs
}

func writeFiles(t *testing.T, fs filestore.FileSystem, files map[string]string) {
	t.Helper()
	for p, content := range files {
		require.NoError(t, fs.Write(context.Background(), p, strings.NewReader(content), filestore.WithOverwrite(true)))
	}
}

// devStore mirrors a development folder: source checkouts whose directory
// names have nothing to do with the libraries inside.
func devStore(t *testing.T) *memory.Adapter {
	return newStore(t, map[string]string{
		"joubel-ui-src/library.json":      libraryJSON(joubelUI),
		"joubel-ui-src/package.json":      `{"name": "h5p-joubel-ui"}`,
		"joubel-ui-src/js/joubel-ui.js":   "H5P.JoubelUI = {};",
		"joubel-ui-src/css/joubel-ui.css": ".joubel {}",
		"joubel-ui-src/language/de.json":  `{"semantics": []}`,
		"joubel-ui-src/language/nb.json":  `{"semantics": []}`,
		"joubel-ui-src/language/README":   "translations",
		"notes/todo.txt":                  "not a library",
	})
}

// countingReader counts directory listings of the wrapped store.
type countingReader struct {
	filestore.FileReader
	lists   atomic.Int32
	listErr error
}

func (c *countingReader) ListContents(ctx context.Context, path string, recursive bool) ([]filestore.FileInfo, error) {
	c.lists.Add(1)
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.FileReader.ListContents(ctx, path, recursive)
}

var errBroken = errors.New("broken disk")
