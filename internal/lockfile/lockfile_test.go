package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwd")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTrack(t *testing.T) {
	t.Run("locks, snapshots and releases", func(t *testing.T) {
		path := tempFile(t, "root:x:0:0:root:/root:/bin/bash\n")
		tracked, err := Track(path, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, path, tracked.Path())

		_, err = os.Stat(path + ".lock")
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("missing file leaves no lock behind", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nonexistent")
		_, err := Track(path, zap.NewNop())
		require.Error(t, err)

		_, statErr := os.Stat(path + ".lock")
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestAcquire(t *testing.T) {
	t.Run("holds the lock until released", func(t *testing.T) {
		path := tempFile(t, "a:1\n")
		tracked, err := Track(path, zap.NewNop())
		require.NoError(t, err)

		lf, err := tracked.Acquire()
		require.NoError(t, err)

		raw, err := os.ReadFile(path + ".lock")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(os.Getpid()), string(raw))

		_, err = tracked.Acquire()
		require.ErrorIs(t, err, ErrLocked)

		lf.Release()
		_, err = os.Stat(path + ".lock")
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("reports the holding pid", func(t *testing.T) {
		path := tempFile(t, "a:1\n")
		tracked, err := Track(path, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path+".lock", []byte("12345"), 0o600))
		_, err = tracked.Acquire()
		require.ErrorIs(t, err, ErrLocked)
		assert.Contains(t, err.Error(), "12345")
	})

	t.Run("external modification is dirty", func(t *testing.T) {
		path := tempFile(t, "a:1\n")
		tracked, err := Track(path, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("a:1\nb:2\n"), 0o644))
		_, err = tracked.Acquire()
		require.ErrorIs(t, err, ErrDirty)

		// The failed acquisition must not leave the file locked.
		_, statErr := os.Stat(path + ".lock")
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("trailing whitespace is not a modification", func(t *testing.T) {
		path := tempFile(t, "a:1\n")
		tracked, err := Track(path, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("a:1\n\n"), 0o644))
		lf, err := tracked.Acquire()
		require.NoError(t, err)
		lf.Release()
	})
}

func TestReplaceContents(t *testing.T) {
	path := tempFile(t, "a:1\nb:2\n")
	tracked, err := Track(path, zap.NewNop())
	require.NoError(t, err)

	lf, err := tracked.Acquire()
	require.NoError(t, err)
	require.NoError(t, lf.ReplaceContents("c:3"))
	lf.Release()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "c:3\n", string(b))

	// The snapshot follows the write, so the next acquisition is clean.
	lf, err = tracked.Acquire()
	require.NoError(t, err)
	lf.Release()
}

func TestAppend(t *testing.T) {
	t.Run("appends one line", func(t *testing.T) {
		path := tempFile(t, "a:1\n")
		tracked, err := Track(path, zap.NewNop())
		require.NoError(t, err)

		lf, err := tracked.Acquire()
		require.NoError(t, err)
		require.NoError(t, lf.Append("b:2"))
		lf.Release()

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "a:1\nb:2\n", string(b))

		lf, err = tracked.Acquire()
		require.NoError(t, err)
		lf.Release()
	})

	t.Run("repairs a missing trailing newline first", func(t *testing.T) {
		path := tempFile(t, "a:1")
		tracked, err := Track(path, zap.NewNop())
		require.NoError(t, err)

		lf, err := tracked.Acquire()
		require.NoError(t, err)
		require.NoError(t, lf.Append("b:2"))
		lf.Release()

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "a:1\nb:2\n", string(b))
	})

	t.Run("works on an empty file", func(t *testing.T) {
		path := tempFile(t, "")
		tracked, err := Track(path, zap.NewNop())
		require.NoError(t, err)

		lf, err := tracked.Acquire()
		require.NoError(t, err)
		require.NoError(t, lf.Append("a:1"))
		lf.Release()

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "a:1\n", string(b))
	})
}

func TestRead(t *testing.T) {
	path := tempFile(t, "a:1\nb:2\n")
	tracked, err := Track(path, zap.NewNop())
	require.NoError(t, err)

	lf, err := tracked.Acquire()
	require.NoError(t, err)
	defer lf.Release()

	content, err := lf.Read()
	require.NoError(t, err)
	assert.Equal(t, "a:1\nb:2\n", content)

	// Reading twice returns the same content, the offset is reset.
	content, err = lf.Read()
	require.NoError(t, err)
	assert.Equal(t, "a:1\nb:2\n", content)
}
