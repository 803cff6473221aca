package graphcontent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// publishFinalizer orchestrates the final publish sequence for one content
// node: optional pre-compression of the raw content, best-effort thumbnail,
// version bump, bundle assembly and upload, and the single node update that
// makes the publish visible.
type publishFinalizer struct {
	graph      GraphStore
	blobs      BlobStore
	builder    *PackageBuilder
	folder     string
	workDir    string
	logger     *slog.Logger
	now        func() time.Time
	httpClient *http.Client
}

// finalize runs the publish pipeline on an in-memory copy of node. All
// staging happens on the copy; the closing UpdateNode call is the only
// mutation visible to readers. fetch resolves structural children missing
// from memory.
//
// The remote size stamp is best-effort: once the bundle upload has succeeded
// the publish goes through even if the follow-up metadata lookup fails, in
// which case the node keeps its prior size and the miss is logged.
func (f *publishFinalizer) finalize(ctx context.Context, node *ContentNode, compress bool, fetch func(ids []string) ([]*ContentNode, error)) (*ContentNode, string, string, error) {
	node = node.Clone()

	basePath := filepath.Join(f.workDir, fmt.Sprintf("%d_%s_publish", f.now().UnixMilli(), node.Identifier))
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, "", "", NewServerError(ErrCodePublish, fmt.Errorf("create work directory: %w", err))
	}
	defer func() {
		if err := removeTree(basePath); err != nil {
			f.logger.Warn("publish temp cleanup failed", "dir", basePath, "error", err)
		}
	}()

	var artifactURL, localArtifact string
	if compress {
		url, local, err := f.compressContent(ctx, node, basePath)
		if err != nil {
			return nil, "", "", err
		}
		artifactURL, localArtifact = url, local
	}

	if err := f.createThumbnail(ctx, node, basePath); err != nil {
		f.logger.Warn("thumbnail generation failed", "contentId", node.Identifier, "error", err)
	}

	version := node.Metadata.PkgVersion
	if version < 0 {
		version = 0
	}
	node.Metadata.PkgVersion = version + 1
	node.Metadata.Status = StatusLive

	entries, childIDs, err := BuildManifest([]*ContentNode{node}, fetch)
	if err != nil {
		return nil, "", "", err
	}

	slug := makeSlug(node.Metadata.Name)
	if slug == "" {
		slug = node.Identifier
	}
	bundleName := fmt.Sprintf("%s_%d_%s.ecar", slug, f.now().UnixMilli(), node.Identifier)
	key, url, err := f.builder.Build(ctx, entries, childIDs, bundleName, defaultFormatVersion, basePath)
	if err != nil {
		// The local artifact, if any, is left behind for inspection.
		return nil, "", "", err
	}

	if localArtifact != "" {
		if err := os.Remove(localArtifact); err != nil {
			f.logger.Warn("local artifact cleanup failed", "file", localArtifact, "error", err)
		}
		node.Metadata.ArtifactURL = artifactURL
	}

	node.Metadata.StorageKey = key
	node.Metadata.DownloadURL = url
	node.Metadata.LastPublishedOn = f.now().UTC()
	if meta, err := f.blobs.GetObjectMeta(ctx, key); err != nil {
		f.logger.Warn("bundle size lookup failed", "key", key, "error", err)
	} else {
		node.Metadata.Size = meta.Size
	}

	if err := f.graph.UpdateNode(ctx, node); err != nil {
		return nil, "", "", err
	}
	return node, key, url, nil
}

// compressContent serializes the body, zips the working directory, uploads
// the zip, and returns the remote artifact URL plus the retained local zip
// path. The local file is deleted only after the later bundle upload
// succeeds.
func (f *publishFinalizer) compressContent(ctx context.Context, node *ContentNode, basePath string) (string, string, error) {
	format := SniffBodyFormat(node.Metadata.Body)
	if format == BodyFormatUnknown {
		return "", "", NewServerError(ErrCodePublish, fmt.Errorf("content %s has no recognizable body", node.Identifier))
	}
	bodyPath := filepath.Join(basePath, format.descriptorFileName())
	if err := os.WriteFile(bodyPath, []byte(node.Metadata.Body), 0644); err != nil {
		return "", "", NewServerError(ErrCodePublish, fmt.Errorf("write body: %w", err))
	}

	zipPath := filepath.Join(f.workDir, fmt.Sprintf("%d_%s.zip", f.now().UnixMilli(), node.Identifier))
	if err := zipDirectory(basePath, zipPath); err != nil {
		return "", "", NewServerError(ErrCodePublish, err)
	}
	_, url, err := uploadLocalFile(ctx, f.blobs, f.folder, zipPath)
	if err != nil {
		return "", "", NewServerError(ErrCodeUploadFile, err)
	}
	return url, zipPath, nil
}

// createThumbnail downloads the configured app icon into the working
// directory so it ships inside the bundle. Best-effort; the caller logs and
// ignores failures.
func (f *publishFinalizer) createThumbnail(ctx context.Context, node *ContentNode, basePath string) error {
	iconURL := node.Metadata.AppIcon
	if iconURL == "" {
		return nil
	}
	client := f.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return fmt.Errorf("request app icon: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download app icon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download app icon: status %d", resp.StatusCode)
	}
	out, err := os.Create(filepath.Join(basePath, "logo.png"))
	if err != nil {
		return fmt.Errorf("stage app icon: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("stage app icon: %w", err)
	}
	return nil
}
