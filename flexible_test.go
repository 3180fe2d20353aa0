package libkit

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/libkit/filestore"
)

func TestFlexibleDirectoryStorage_DevelopmentCheckout(t *testing.T) {
	ctx := context.Background()
	storage := NewFlexibleDirectoryStorage(devStore(t), WithLocation("dev"))

	exists, err := storage.LibraryExists(ctx, joubelUI)
	require.NoError(t, err)
	assert.True(t, exists)

	files, err := storage.ListFiles(ctx, joubelUI)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"css/joubel-ui.css",
		"js/joubel-ui.js",
		"language/README",
		"language/de.json",
		"language/nb.json",
		"library.json",
	}, files)

	exists, err = storage.FileExists(ctx, joubelUI, "js/joubel-ui.js")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = storage.FileExists(ctx, joubelUI, "/js/../js/joubel-ui.js")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := storage.GetFileStream(ctx, joubelUI, "js/joubel-ui.js")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "H5P.JoubelUI = {};", string(data))

	languages, err := storage.GetLanguageFiles(ctx, joubelUI)
	require.NoError(t, err)
	assert.Equal(t, []string{"de.json", "nb.json"}, languages)

	metadata, err := storage.GetMetadata(ctx, joubelUI)
	require.NoError(t, err)
	assert.Equal(t, joubelUI, metadata.LibraryName)
	assert.Equal(t, 4, metadata.PatchVersion)
	assert.Equal(t, []Path{{Path: "js/main.js"}}, metadata.PreloadedJS)
}

func TestFlexibleDirectoryStorage_IgnoresPackageJSON(t *testing.T) {
	ctx := context.Background()
	storage := NewFlexibleDirectoryStorage(devStore(t))

	exists, err := storage.FileExists(ctx, joubelUI, "package.json")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = storage.GetFileStream(ctx, joubelUI, "package.json")
	assert.ErrorIs(t, err, ErrIgnoredFile)

	files, err := storage.ListFiles(ctx, joubelUI)
	require.NoError(t, err)
	assert.NotContains(t, files, "package.json")
}

func TestFlexibleDirectoryStorage_CustomIgnorePatterns(t *testing.T) {
	ctx := context.Background()
	storage := NewFlexibleDirectoryStorage(devStore(t), WithIgnorePatterns(MustIgnoreMatcher("package.json", "*.css", "language/README")))

	files, err := storage.ListFiles(ctx, joubelUI)
	require.NoError(t, err)
	assert.Equal(t, []string{"js/joubel-ui.js", "language/de.json", "language/nb.json", "library.json"}, files)
}

func TestFlexibleDirectoryStorage_NotInstalled(t *testing.T) {
	ctx := context.Background()
	storage := NewFlexibleDirectoryStorage(devStore(t), WithLocation("/srv/dev"))

	exists, err := storage.LibraryExists(ctx, blanks)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = storage.ListFiles(ctx, blanks)
	require.Error(t, err)
	assert.True(t, IsNotInstalled(err))

	var libErr *LibraryError
	require.True(t, errors.As(err, &libErr))
	assert.Equal(t, blanks, libErr.Library)
	assert.Equal(t, "/srv/dev", libErr.Location)
	assert.Contains(t, err.Error(), "H5P.Blanks-1.12")

	_, err = storage.FileExists(ctx, blanks, "library.json")
	assert.True(t, IsNotInstalled(err))
	_, err = storage.GetFileStream(ctx, blanks, "library.json")
	assert.True(t, IsNotInstalled(err))
	_, err = storage.GetLanguageFiles(ctx, blanks)
	assert.True(t, IsNotInstalled(err))
}

func TestFlexibleDirectoryStorage_OtherVersionNotInstalled(t *testing.T) {
	ctx := context.Background()
	storage := NewFlexibleDirectoryStorage(devStore(t))
	newer := LibraryName{MachineName: "H5P.JoubelUI", MajorVersion: 1, MinorVersion: 4}

	exists, err := storage.FileExists(ctx, newer, MetadataFile)
	assert.False(t, exists)
	require.Error(t, err)
	assert.True(t, IsNotInstalled(err))

	var libErr *LibraryError
	require.ErrorAs(t, err, &libErr)
	assert.Equal(t, newer, libErr.Library)

	exists, err = storage.FileExists(ctx, joubelUI, MetadataFile)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFlexibleDirectoryStorage_MissingFile(t *testing.T) {
	ctx := context.Background()
	storage := NewFlexibleDirectoryStorage(devStore(t))

	exists, err := storage.FileExists(ctx, joubelUI, "js/missing.js")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = storage.GetFileStream(ctx, joubelUI, "js/missing.js")
	assert.True(t, filestore.IsNotExist(err))
}

func TestFlexibleDirectoryStorage_GetInstalled(t *testing.T) {
	ctx := context.Background()
	fs := devStore(t)
	writeFiles(t, fs, map[string]string{
		"blanks-checkout/library.json": libraryJSON(blanks),
		"broken/library.json":          "{",
	})
	storage := NewFlexibleDirectoryStorage(fs)

	names, err := storage.GetInstalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LibraryName{blanks, joubelUI}, names)

	names, err = storage.GetInstalled(ctx, "H5P.JoubelUI", "H5P.Unknown")
	require.NoError(t, err)
	assert.Equal(t, []LibraryName{joubelUI}, names)
}

func TestFlexibleDirectoryStorage_ReadOnly(t *testing.T) {
	ctx := context.Background()
	storage := NewFlexibleDirectoryStorage(devStore(t))
	metadata := &LibraryMetadata{LibraryName: blanks}

	_, err := storage.InstallLibrary(ctx, metadata, false)
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = storage.UpdateLibrary(ctx, metadata)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, storage.RemoveLibrary(ctx, joubelUI), ErrReadOnly)
	_, err = storage.AddLibraryFile(ctx, joubelUI, "js/new.js", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, storage.ClearLibraryFiles(ctx, joubelUI), ErrReadOnly)

	_, err = storage.InstallLibrary(ctx, nil, false)
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = storage.UpdateLibrary(ctx, nil)
	var libErr *LibraryError
	require.ErrorAs(t, err, &libErr)
	assert.ErrorIs(t, err, ErrReadOnly)

	files, err := storage.ListFiles(ctx, joubelUI)
	require.NoError(t, err)
	assert.Len(t, files, 6)
}

func TestFlexibleDirectoryStorage_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := devStore(t)
	storage := NewFlexibleDirectoryStorage(fs)

	_, found, err := storage.Mapper().Resolve(ctx, joubelUI)
	require.NoError(t, err)
	require.True(t, found)

	require.True(t, storage.Watch(ctx))

	// The watch is armed asynchronously, so keep touching library.json
	// until the cache is dropped.
	assert.Eventually(t, func() bool {
		err := fs.Write(ctx, "blanks/library.json", strings.NewReader(libraryJSON(blanks)), filestore.WithOverwrite(true))
		return assert.NoError(t, err) && storage.Mapper().Cached(joubelUI) == ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFlexibleDirectoryStorage_WatchUnsupported(t *testing.T) {
	storage := NewFlexibleDirectoryStorage(&countingReader{FileReader: devStore(t)})
	assert.False(t, storage.Watch(context.Background()))
}
