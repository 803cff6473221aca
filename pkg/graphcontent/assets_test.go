package graphcontent_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowstack/graph-content/pkg/graphcontent"
	"github.com/knowstack/graph-content/pkg/graphcontent/repo/memory"
	memorystorage "github.com/knowstack/graph-content/pkg/graphcontent/storage/memory"
)

func writeAsset(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("asset-bytes"), 0644))
}

func TestAssetResolverUploadsOnlyUnresolved(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	blobs := memorystorage.New()
	resolver := graphcontent.NewAssetResolver(graph, blobs, "content", nil)

	// m1 already exists with a resolved location.
	_, err := graph.CreateNode(ctx, &graphcontent.ContentNode{
		Identifier: "m1",
		ObjectType: graphcontent.ObjectTypeContent,
		GraphID:    "domain",
		Metadata:   graphcontent.Metadata{DownloadURL: "memory://content/existing_m1.png"},
	})
	require.NoError(t, err)

	assetDir := t.TempDir()
	writeAsset(t, assetDir, "m1.png")
	writeAsset(t, assetDir, "m2.png")

	urls, err := resolver.Resolve(ctx, "domain", assetDir, map[string]string{
		"m1": "m1.png",
		"m2": "m2.png",
	})
	require.NoError(t, err)

	assert.Equal(t, "memory://content/existing_m1.png", urls["m1"])
	assert.NotEmpty(t, urls["m2"])

	// Exactly one file was uploaded: the one for m2.
	assert.Equal(t, 1, blobs.ObjectCount())

	// m2 now exists as a media asset node carrying its location.
	node, err := graph.GetNode(ctx, "domain", "m2")
	require.NoError(t, err)
	assert.Equal(t, urls["m2"], node.Metadata.DownloadURL)
	assert.Equal(t, "Asset", node.Metadata.ContentType)
	assert.Equal(t, graphcontent.StatusLive, node.Metadata.Status)
	assert.Equal(t, graphcontent.MediaTypeImage, node.Metadata.MediaType)
}

func TestAssetResolverAllResolved(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	blobs := memorystorage.New()
	resolver := graphcontent.NewAssetResolver(graph, blobs, "content", nil)

	for _, id := range []string{"m1", "m2"} {
		_, err := graph.CreateNode(ctx, &graphcontent.ContentNode{
			Identifier: id,
			ObjectType: graphcontent.ObjectTypeContent,
			GraphID:    "domain",
			Metadata:   graphcontent.Metadata{DownloadURL: "memory://content/" + id},
		})
		require.NoError(t, err)
	}

	urls, err := resolver.Resolve(ctx, "domain", t.TempDir(), map[string]string{
		"m1": "m1.png",
		"m2": "m2.png",
	})
	require.NoError(t, err)
	assert.Len(t, urls, 2)
	assert.Equal(t, 0, blobs.ObjectCount())
}

func TestAssetResolverExistingNodeWithoutURL(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	blobs := memorystorage.New()
	resolver := graphcontent.NewAssetResolver(graph, blobs, "content", nil)

	_, err := graph.CreateNode(ctx, &graphcontent.ContentNode{
		Identifier: "m1",
		ObjectType: graphcontent.ObjectTypeContent,
		GraphID:    "domain",
	})
	require.NoError(t, err)

	assetDir := t.TempDir()
	writeAsset(t, assetDir, "m1.png")

	urls, err := resolver.Resolve(ctx, "domain", assetDir, map[string]string{"m1": "m1.png"})
	require.NoError(t, err)
	assert.NotEmpty(t, urls["m1"])
	assert.Equal(t, 1, blobs.ObjectCount())

	node, err := graph.GetNode(ctx, "domain", "m1")
	require.NoError(t, err)
	assert.Equal(t, urls["m1"], node.Metadata.DownloadURL)
}

func TestAssetResolverSkipsMissingFiles(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	blobs := memorystorage.New()
	resolver := graphcontent.NewAssetResolver(graph, blobs, "content", nil)

	urls, err := resolver.Resolve(ctx, "domain", t.TempDir(), map[string]string{"ghost": "ghost.png"})
	require.NoError(t, err)
	assert.Empty(t, urls)
	assert.Equal(t, 0, blobs.ObjectCount())

	_, err = graph.GetNode(ctx, "domain", "ghost")
	assert.ErrorIs(t, err, graphcontent.ErrNodeNotFound)
}

func TestAssetResolverValidationFailure(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	graph.RequireMetadata(graphcontent.ObjectTypeContent, "license")
	blobs := memorystorage.New()
	resolver := graphcontent.NewAssetResolver(graph, blobs, "content", nil)

	assetDir := t.TempDir()
	writeAsset(t, assetDir, "m1.png")

	_, err := resolver.Resolve(ctx, "domain", assetDir, map[string]string{"m1": "m1.png"})
	require.Error(t, err)

	var validationErr *graphcontent.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Messages[0], "license")
}
