package graphcontent_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowstack/graph-content/pkg/graphcontent"
)

const packageMarkup = `<theme id="t1" ver="0.2">
  <manifest>
    <media id="img_1" src="icon.png" type="image"/>
  </manifest>
  <controller id="ctrl1" type="Items"/>
  <stage id="s1">
    <image asset="img_1" src="icon.png"/>
  </stage>
  <items>
    <item id="q_old"/>
  </items>
  <data>author scratch</data>
</theme>`

const packageItemFile = `{
  "identifier": "qs_pkg",
  "items": {"set1": [{"qid": "q1", "qlevel": "EASY"}]}
}`

// buildPackage writes a content package zip with markup, one asset, one item
// sidecar, and a fallback logo.
func buildPackage(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "index.ecml"), []byte(packageMarkup), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "logo.png"), []byte("logo-bytes"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "assets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "assets", "icon.png"), []byte("icon-bytes"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "items"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "items", "ctrl1.json"), []byte(packageItemFile), 0644))

	zipPath := filepath.Join(t.TempDir(), "pkg.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	writer := zip.NewWriter(out)
	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		entry, err := writer.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = entry.Write(raw)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, out.Close())
	return zipPath
}

func TestExtractRewritesBodyAndSyncsItems(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createContent(t, "do_1", graphcontent.Metadata{Name: "Lesson"})

	_, err := f.svc.Upload(ctx, graphcontent.UploadRequest{
		GraphID: "domain", ContentID: "do_1", FilePath: buildPackage(t),
	})
	require.NoError(t, err)

	res, err := f.svc.Extract(ctx, graphcontent.ExtractRequest{GraphID: "domain", ContentID: "do_1"})
	require.NoError(t, err)

	// Media sources now point at their uploaded locations.
	assert.Contains(t, res.Body, `src="memory://content/`)
	assert.NotContains(t, res.Body, `src="icon.png"`)

	// Author-time sections are gone, presentation markup survives.
	assert.NotContains(t, res.Body, "<items>")
	assert.NotContains(t, res.Body, "author scratch")
	assert.Contains(t, res.Body, "<stage")

	assert.Equal(t, "1 items added successfully", res.ItemReports["ctrl1.json"])
	assert.NotEmpty(t, res.Relations)

	// The rewritten body and fallback icon are persisted on the node.
	node, err := f.svc.GetNode(ctx, "domain", "do_1")
	require.NoError(t, err)
	assert.Equal(t, res.Body, node.Metadata.Body)
	assert.Contains(t, node.Metadata.AppIcon, "_logo.png")
	assert.NotEmpty(t, node.OutRelations)

	// The referenced media exists as its own node now.
	media, err := f.svc.GetNode(ctx, "domain", "img_1")
	require.NoError(t, err)
	assert.NotEmpty(t, media.Metadata.DownloadURL)

	f.assertWorkDirEmpty(t)
}

func TestExtractKeepsExistingAppIcon(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createContent(t, "do_1", graphcontent.Metadata{AppIcon: "memory://content/custom.png"})

	_, err := f.svc.Upload(ctx, graphcontent.UploadRequest{
		GraphID: "domain", ContentID: "do_1", FilePath: buildPackage(t),
	})
	require.NoError(t, err)

	_, err = f.svc.Extract(ctx, graphcontent.ExtractRequest{GraphID: "domain", ContentID: "do_1"})
	require.NoError(t, err)

	node, err := f.svc.GetNode(ctx, "domain", "do_1")
	require.NoError(t, err)
	assert.Equal(t, "memory://content/custom.png", node.Metadata.AppIcon)
}

func TestExtractWithoutUpload(t *testing.T) {
	f := newServiceFixture(t)
	f.createContent(t, "do_1", graphcontent.Metadata{})

	_, err := f.svc.Extract(context.Background(), graphcontent.ExtractRequest{
		GraphID: "domain", ContentID: "do_1",
	})
	var clientErr *graphcontent.ClientError
	require.ErrorAs(t, err, &clientErr)
	f.assertWorkDirEmpty(t)
}

func TestExtractCorruptArchiveCleansUp(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createContent(t, "do_1", graphcontent.Metadata{})

	badPkg := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(badPkg, []byte("not a zip archive"), 0644))
	_, err := f.svc.Upload(ctx, graphcontent.UploadRequest{
		GraphID: "domain", ContentID: "do_1", FilePath: badPkg,
	})
	require.NoError(t, err)

	_, err = f.svc.Extract(ctx, graphcontent.ExtractRequest{GraphID: "domain", ContentID: "do_1"})
	var serverErr *graphcontent.ServerError
	require.ErrorAs(t, err, &serverErr)

	// Failure still removes the staging tree.
	f.assertWorkDirEmpty(t)
}

func TestExtractMissingPackageObject(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createContent(t, "do_1", graphcontent.Metadata{StorageKey: "content/ghost.zip"})

	_, err := f.svc.Extract(ctx, graphcontent.ExtractRequest{GraphID: "domain", ContentID: "do_1"})
	var notFoundErr *graphcontent.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	f.assertWorkDirEmpty(t)
}
