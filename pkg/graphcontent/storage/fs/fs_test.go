package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowstack/graph-content/pkg/graphcontent"
	"github.com/knowstack/graph-content/pkg/graphcontent/storage/fs"
)

func newBackend(t *testing.T) (*fs.Backend, string) {
	t.Helper()
	baseDir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: baseDir})
	require.NoError(t, err)
	return backend, baseDir
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	require.Error(t, err)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	backend, baseDir := newBackend(t)
	ctx := context.Background()

	err := backend.Upload(ctx, "content/pkg.zip", strings.NewReader("package bytes"))
	require.NoError(t, err)

	// Nested keys map onto nested directories.
	_, statErr := os.Stat(filepath.Join(baseDir, "content", "pkg.zip"))
	require.NoError(t, statErr)

	reader, err := backend.Download(ctx, "content/pkg.zip")
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "package bytes", string(data))
}

func TestDownloadMissingObject(t *testing.T) {
	backend, _ := newBackend(t)

	_, err := backend.Download(context.Background(), "content/missing.zip")
	assert.ErrorIs(t, err, graphcontent.ErrObjectNotFound)
}

func TestGetDownloadURL(t *testing.T) {
	ctx := context.Background()

	t.Run("WithPrefix", func(t *testing.T) {
		baseDir := t.TempDir()
		backend, err := fs.New(fs.Config{BaseDir: baseDir, URLPrefix: "http://localhost:8080/files"})
		require.NoError(t, err)

		url, err := backend.GetDownloadURL(ctx, "content/pkg.zip")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/files/content/pkg.zip", url)
	})

	t.Run("WithoutPrefix", func(t *testing.T) {
		backend, _ := newBackend(t)

		url, err := backend.GetDownloadURL(ctx, "content/pkg.zip")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "file://"))
		assert.True(t, strings.HasSuffix(url, "content/pkg.zip"))
	})
}

func TestDeleteCleansEmptyDirectories(t *testing.T) {
	backend, baseDir := newBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, "ecar_files/deep/bundle.ecar", strings.NewReader("x")))
	require.NoError(t, backend.Delete(ctx, "ecar_files/deep/bundle.ecar"))

	_, err := os.Stat(filepath.Join(baseDir, "ecar_files"))
	assert.True(t, os.IsNotExist(err))

	err = backend.Delete(ctx, "ecar_files/deep/bundle.ecar")
	assert.ErrorIs(t, err, graphcontent.ErrObjectNotFound)
}

func TestGetObjectMeta(t *testing.T) {
	backend, _ := newBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, "content/note.txt", strings.NewReader("plain text content")))

	meta, err := backend.GetObjectMeta(ctx, "content/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "content/note.txt", meta.Key)
	assert.Equal(t, int64(len("plain text content")), meta.Size)
	assert.Contains(t, meta.ContentType, "text/plain")
	assert.False(t, meta.UpdatedAt.IsZero())

	_, err = backend.GetObjectMeta(ctx, "content/missing.txt")
	assert.ErrorIs(t, err, graphcontent.ErrObjectNotFound)
}
