package graphcontent

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipUnzipRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "assets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "index.ecml"), []byte("<theme/>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "assets", "icon.png"), []byte("png-bytes"), 0644))

	zipPath := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, zipDirectory(src, zipPath))

	dest := t.TempDir()
	require.NoError(t, unzipArchive(zipPath, dest))

	body, err := os.ReadFile(filepath.Join(dest, "index.ecml"))
	require.NoError(t, err)
	assert.Equal(t, "<theme/>", string(body))

	icon, err := os.ReadFile(filepath.Join(dest, "assets", "icon.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(icon))
}

func TestUnzipArchiveRejectsEscapingEntries(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	writer := zip.NewWriter(out)
	entry, err := writer.Create("../escape.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, out.Close())

	dest := t.TempDir()
	err = unzipArchive(zipPath, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
}

func TestRemoveTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "leaf.txt"), []byte("y"), 0644))

	require.NoError(t, removeTree(root))
	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveTreeMissingRoot(t *testing.T) {
	assert.NoError(t, removeTree(filepath.Join(t.TempDir(), "nope")))
}
