package libkit

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleStore(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"library.json":        libraryJSON(blanks),
		"package.json":        `{"name": "h5p-blanks"}`,
		"js/blanks.js":        "H5P.Blanks = {};",
		"language/fr.json":    `{"semantics": []}`,
		"node_modules/x/a.js": "dependency",
	}
}

func TestNewSingleLibraryStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("requires library.json at the root", func(t *testing.T) {
		_, err := NewSingleLibraryStorage(ctx, newStore(t, map[string]string{
			"nested/library.json": libraryJSON(blanks),
		}), WithLocation("single"))
		assert.ErrorIs(t, err, ErrInvalidLibraryDirectory)
		assert.Contains(t, err.Error(), "single")
	})

	t.Run("accepts a library directory", func(t *testing.T) {
		storage, err := NewSingleLibraryStorage(ctx, newStore(t, singleStore(t)))
		require.NoError(t, err)
		assert.NotNil(t, storage)
	})
}

func TestSingleLibraryStorage_LibraryExists(t *testing.T) {
	ctx := context.Background()
	fs := newStore(t, singleStore(t))
	storage, err := NewSingleLibraryStorage(ctx, fs)
	require.NoError(t, err)

	exists, err := storage.LibraryExists(ctx, blanks)
	require.NoError(t, err)
	assert.True(t, exists)

	for _, other := range []LibraryName{
		{MachineName: "H5P.Blanks", MajorVersion: 1, MinorVersion: 11},
		{MachineName: "H5P.Blanks", MajorVersion: 2, MinorVersion: 12},
		{MachineName: "H5P.Blank", MajorVersion: 1, MinorVersion: 12},
	} {
		exists, err := storage.LibraryExists(ctx, other)
		require.NoError(t, err)
		assert.False(t, exists, other.UberName())
	}

	t.Run("re-reads library.json on every call", func(t *testing.T) {
		bumped := blanks
		bumped.MinorVersion = 13
		writeFiles(t, fs, map[string]string{"library.json": libraryJSON(bumped)})

		exists, err := storage.LibraryExists(ctx, bumped)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = storage.LibraryExists(ctx, blanks)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("malformed library.json is reported", func(t *testing.T) {
		writeFiles(t, fs, map[string]string{"library.json": "{"})

		_, err := storage.LibraryExists(ctx, blanks)
		assert.ErrorIs(t, err, ErrMalformedMetadata)
	})
}

func TestSingleLibraryStorage_Files(t *testing.T) {
	ctx := context.Background()
	storage, err := NewSingleLibraryStorage(ctx, newStore(t, singleStore(t)))
	require.NoError(t, err)

	files, err := storage.ListFiles(ctx, blanks)
	require.NoError(t, err)
	assert.Equal(t, []string{"js/blanks.js", "language/fr.json", "library.json", "node_modules/x/a.js"}, files)

	exists, err := storage.FileExists(ctx, blanks, "package.json")
	require.NoError(t, err)
	assert.False(t, exists)

	rc, err := storage.GetFileStream(ctx, blanks, "js/blanks.js")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "H5P.Blanks = {};", string(data))

	languages, err := storage.GetLanguageFiles(ctx, blanks)
	require.NoError(t, err)
	assert.Equal(t, []string{"fr.json"}, languages)

	metadata, err := storage.GetMetadata(ctx, blanks)
	require.NoError(t, err)
	assert.Equal(t, "H5P.Blanks", metadata.Title)

	other := LibraryName{MachineName: "H5P.Blanks", MajorVersion: 1, MinorVersion: 11}
	_, err = storage.ListFiles(ctx, other)
	assert.True(t, IsNotInstalled(err))
	_, err = storage.GetFileStream(ctx, other, "js/blanks.js")
	assert.True(t, IsNotInstalled(err))
	_, err = storage.FileExists(ctx, other, "js/blanks.js")
	assert.True(t, IsNotInstalled(err))
}

func TestSingleLibraryStorage_GetInstalled(t *testing.T) {
	ctx := context.Background()
	storage, err := NewSingleLibraryStorage(ctx, newStore(t, singleStore(t)))
	require.NoError(t, err)

	names, err := storage.GetInstalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LibraryName{blanks}, names)

	names, err = storage.GetInstalled(ctx, "H5P.Blanks")
	require.NoError(t, err)
	assert.Equal(t, []LibraryName{blanks}, names)

	names, err = storage.GetInstalled(ctx, "H5P.JoubelUI")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSingleLibraryStorage_ReadOnly(t *testing.T) {
	ctx := context.Background()
	storage, err := NewSingleLibraryStorage(ctx, newStore(t, singleStore(t)))
	require.NoError(t, err)

	_, err = storage.InstallLibrary(ctx, &LibraryMetadata{LibraryName: joubelUI}, true)
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = storage.UpdateLibrary(ctx, &LibraryMetadata{LibraryName: blanks})
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, storage.RemoveLibrary(ctx, blanks), ErrReadOnly)
	_, err = storage.AddLibraryFile(ctx, blanks, "js/x.js", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, storage.ClearLibraryFiles(ctx, blanks), ErrReadOnly)

	_, err = storage.InstallLibrary(ctx, nil, false)
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = storage.UpdateLibrary(ctx, nil)
	assert.ErrorIs(t, err, ErrReadOnly)
}
