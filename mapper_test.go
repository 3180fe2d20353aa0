package libkit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryMapper_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("finds arbitrarily named directory", func(t *testing.T) {
		mapper := NewDirectoryMapper(devStore(t))

		dir, found, err := mapper.Resolve(ctx, joubelUI)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "joubel-ui-src", dir)
		assert.Equal(t, "joubel-ui-src", mapper.Cached(joubelUI))
	})

	t.Run("cache hit skips the scan", func(t *testing.T) {
		reader := &countingReader{FileReader: devStore(t)}
		mapper := NewDirectoryMapper(reader)

		_, found, err := mapper.Resolve(ctx, joubelUI)
		require.NoError(t, err)
		require.True(t, found)

		dir, found, err := mapper.Resolve(ctx, joubelUI)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "joubel-ui-src", dir)
		assert.Equal(t, int32(1), reader.lists.Load())
	})

	t.Run("rescans after metadata disappears", func(t *testing.T) {
		fs := devStore(t)
		reader := &countingReader{FileReader: fs}
		mapper := NewDirectoryMapper(reader)

		_, _, err := mapper.Resolve(ctx, joubelUI)
		require.NoError(t, err)

		require.NoError(t, fs.DeleteDir(ctx, "joubel-ui-src"))
		writeFiles(t, fs, map[string]string{"moved/library.json": libraryJSON(joubelUI)})

		dir, found, err := mapper.Resolve(ctx, joubelUI)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "moved", dir)
		assert.Equal(t, int32(2), reader.lists.Load())
	})

	t.Run("miss is not cached", func(t *testing.T) {
		fs := devStore(t)
		mapper := NewDirectoryMapper(fs)

		dir, found, err := mapper.Resolve(ctx, blanks)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, dir)
		assert.Empty(t, mapper.Cached(blanks))

		writeFiles(t, fs, map[string]string{"blanks/library.json": libraryJSON(blanks)})

		dir, found, err = mapper.Resolve(ctx, blanks)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "blanks", dir)
	})

	t.Run("identity must match exactly", func(t *testing.T) {
		mapper := NewDirectoryMapper(devStore(t))

		other := joubelUI
		other.MinorVersion = 4
		_, found, err := mapper.Resolve(ctx, other)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("malformed metadata is a non-match", func(t *testing.T) {
		mapper := NewDirectoryMapper(newStore(t, map[string]string{
			"a-broken/library.json": "{not json",
			"b-empty/library.json":  `{"majorVersion": 1}`,
			"c-good/library.json":   libraryJSON(blanks),
		}))

		dir, found, err := mapper.Resolve(ctx, blanks)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "c-good", dir)
	})

	t.Run("first directory in name order wins", func(t *testing.T) {
		mapper := NewDirectoryMapper(newStore(t, map[string]string{
			"b-copy/library.json": libraryJSON(blanks),
			"a-copy/library.json": libraryJSON(blanks),
		}))

		dir, _, err := mapper.Resolve(ctx, blanks)
		require.NoError(t, err)
		assert.Equal(t, "a-copy", dir)
	})

	t.Run("listing failure is returned", func(t *testing.T) {
		mapper := NewDirectoryMapper(&countingReader{FileReader: devStore(t), listErr: errBroken}, WithLocation("/srv/dev"))

		_, found, err := mapper.Resolve(ctx, joubelUI)
		assert.False(t, found)
		assert.ErrorIs(t, err, errBroken)
		assert.Contains(t, err.Error(), "/srv/dev")
	})

	t.Run("names sharing an uber-name do not share a cache entry", func(t *testing.T) {
		dashed := LibraryName{MachineName: "X-", MajorVersion: 1, MinorVersion: 2}
		negative := LibraryName{MachineName: "X", MajorVersion: -1, MinorVersion: 2}
		require.Equal(t, dashed.UberName(), negative.UberName())

		mapper := NewDirectoryMapper(newStore(t, map[string]string{
			"a/library.json": libraryJSON(dashed),
			"b/library.json": libraryJSON(negative),
		}))

		_, found, err := mapper.Resolve(ctx, negative)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, mapper.Cached(negative))

		dir, found, err := mapper.Resolve(ctx, dashed)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "a", dir)
		assert.Equal(t, "a", mapper.Cached(dashed))
		assert.Empty(t, mapper.Cached(negative))
	})

	t.Run("files at the base are ignored", func(t *testing.T) {
		mapper := NewDirectoryMapper(newStore(t, map[string]string{
			"library.json": libraryJSON(blanks),
		}))

		_, found, err := mapper.Resolve(ctx, blanks)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestDirectoryMapper_Scan(t *testing.T) {
	ctx := context.Background()
	mapper := NewDirectoryMapper(newStore(t, map[string]string{
		"zz/library.json":       libraryJSON(joubelUI),
		"blanks/library.json":   libraryJSON(blanks),
		"dup/library.json":      libraryJSON(joubelUI),
		"broken/library.json":   "[]",
		"no-metadata/README.md": "hello",
	}))

	libraries, err := mapper.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []MappedLibrary{
		{Name: blanks, Dir: "blanks"},
		{Name: joubelUI, Dir: "dup"},
	}, libraries)

	assert.Equal(t, "dup", mapper.Cached(joubelUI))
	assert.Equal(t, "blanks", mapper.Cached(blanks))
}

func TestDirectoryMapper_InvalidateAndReset(t *testing.T) {
	ctx := context.Background()
	mapper := NewDirectoryMapper(newStore(t, map[string]string{
		"one/library.json": libraryJSON(joubelUI),
		"two/library.json": libraryJSON(blanks),
	}))

	_, err := mapper.Scan(ctx)
	require.NoError(t, err)

	mapper.Invalidate(joubelUI)
	assert.Empty(t, mapper.Cached(joubelUI))
	assert.Equal(t, "two", mapper.Cached(blanks))

	mapper.Reset()
	assert.Empty(t, mapper.Cached(blanks))
}

func TestDirectoryMapper_ConcurrentResolve(t *testing.T) {
	ctx := context.Background()
	fs := devStore(t)
	writeFiles(t, fs, map[string]string{"blanks/library.json": libraryJSON(blanks)})
	mapper := NewDirectoryMapper(fs)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := joubelUI
			if i%2 == 0 {
				name = blanks
			}
			_, found, err := mapper.Resolve(ctx, name)
			assert.NoError(t, err)
			assert.True(t, found)
			if i%5 == 0 {
				mapper.Reset()
			}
		}(i)
	}
	wg.Wait()
}
