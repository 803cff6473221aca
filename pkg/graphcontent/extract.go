package graphcontent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// extractor drives the unpack, assessment sync, media resolution, and markup
// rewrite sequence for one content package. Terminal on first hard error:
// Unpacked -> MediaResolved -> MarkupRewritten -> Done.
type extractor struct {
	blobs   BlobStore
	assets  *AssetResolver
	items   *AssessmentSynchronizer
	workDir string
	logger  *slog.Logger
	now     func() time.Time
}

// extraction is the outcome of a package extraction, to be persisted by the
// caller.
type extraction struct {
	Body        string
	Relations   []Relation
	ItemReports map[string]string
	AppIconURL  string
}

// run extracts the package referenced by the node's storage key. The temp
// directory is deleted unconditionally on exit; delete failures are logged,
// not raised.
func (e *extractor) run(ctx context.Context, node *ContentNode) (*extraction, error) {
	if node.Metadata.StorageKey == "" && node.Metadata.DownloadURL == "" {
		return nil, NewClientError(ErrCodeExtract, "content has no uploaded package")
	}

	tempDir := filepath.Join(e.workDir, fmt.Sprintf("%d_%s_extract", e.now().UnixMilli(), uuid.NewString()[:8]))
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, NewServerError(ErrCodeExtract, fmt.Errorf("create temp directory: %w", err))
	}
	defer func() {
		if err := removeTree(tempDir); err != nil {
			e.logger.Warn("extract temp cleanup failed", "dir", tempDir, "error", err)
		}
	}()

	archivePath, err := e.fetchArchive(ctx, node, tempDir)
	if err != nil {
		return nil, err
	}
	if err := unzipArchive(archivePath, tempDir); err != nil {
		return nil, NewServerError(ErrCodeExtract, err)
	}

	relations, reports, err := e.items.Sync(ctx, node.GraphID, tempDir, node.Identifier)
	if err != nil {
		return nil, err
	}

	markupPath := filepath.Join(tempDir, markupFileName)
	doc, err := os.ReadFile(markupPath)
	if err != nil {
		return nil, NewServerError(ErrCodeExtract, fmt.Errorf("read markup: %w", err))
	}
	refs, err := mediaRefs(doc)
	if err != nil {
		return nil, NewServerError(ErrCodeExtract, err)
	}
	urls, err := e.assets.Resolve(ctx, node.GraphID, filepath.Join(tempDir, "assets"), refs)
	if err != nil {
		return nil, err
	}

	doc = rewriteMediaSources(doc, refs, urls)
	doc = stripSections(doc, "items", "data")
	if err := os.WriteFile(markupPath, doc, 0644); err != nil {
		return nil, NewServerError(ErrCodeExtract, fmt.Errorf("write markup: %w", err))
	}

	result := &extraction{
		Body:        string(doc),
		Relations:   relations,
		ItemReports: reports,
	}
	if node.Metadata.AppIcon == "" {
		result.AppIconURL = e.uploadFallbackIcon(ctx, tempDir)
	}
	return result, nil
}

// fetchArchive downloads the node's uploaded package into the temp directory
// and returns its local path.
func (e *extractor) fetchArchive(ctx context.Context, node *ContentNode, tempDir string) (string, error) {
	key := node.Metadata.StorageKey
	if key == "" {
		// Older nodes carry only the URL; the key is its trailing path.
		key = e.assets.folder + "/" + filepath.Base(node.Metadata.DownloadURL)
	}
	reader, err := e.blobs.Download(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return "", NewNotFoundError(ErrCodeExtract, fmt.Sprintf("uploaded package %s not found", key))
		}
		return "", NewServerError(ErrCodeExtract, fmt.Errorf("download package %s: %w", key, err))
	}
	defer reader.Close()

	archivePath := filepath.Join(tempDir, filepath.Base(key))
	out, err := os.Create(archivePath)
	if err != nil {
		return "", NewServerError(ErrCodeExtract, fmt.Errorf("stage package: %w", err))
	}
	defer out.Close()
	if _, err := io.Copy(out, reader); err != nil {
		return "", NewServerError(ErrCodeExtract, fmt.Errorf("stage package: %w", err))
	}
	return archivePath, nil
}

// uploadFallbackIcon uploads a logo.png shipped inside the package, if any,
// to serve as the node's app icon. Best-effort: failures are logged and an
// empty URL returned.
func (e *extractor) uploadFallbackIcon(ctx context.Context, tempDir string) string {
	logoPath := filepath.Join(tempDir, "logo.png")
	if _, err := os.Stat(logoPath); err != nil {
		return ""
	}
	renamed := filepath.Join(tempDir, fmt.Sprintf("%d_logo.png", e.now().UnixMilli()))
	if err := os.Rename(logoPath, renamed); err != nil {
		e.logger.Warn("app icon rename failed", "error", err)
		return ""
	}
	_, url, err := uploadLocalFile(ctx, e.blobs, e.assets.folder, renamed)
	if err != nil {
		e.logger.Warn("app icon upload failed", "error", err)
		return ""
	}
	return url
}
