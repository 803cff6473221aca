package graphcontent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// descriptorName is the manifest descriptor file inside a bundle archive.
const descriptorName = "manifest.json"

// defaultFormatVersion is stamped on descriptors when the caller does not ask
// for a specific archive format version.
const defaultFormatVersion = "1.1"

// bundleDescriptor is the serialized shape of the archive descriptor.
type bundleDescriptor struct {
	ID      string        `json:"id"`
	Ver     string        `json:"ver"`
	TS      string        `json:"ts"`
	Archive bundleArchive `json:"archive"`
}

type bundleArchive struct {
	Count    int             `json:"count"`
	Items    []ManifestEntry `json:"items"`
	Children []string        `json:"children,omitempty"`
}

// PackageBuilder serializes a manifest (plus any locally staged asset files)
// into a single archive and uploads it to object storage.
type PackageBuilder struct {
	blobs   BlobStore
	folder  string
	workDir string
	logger  *slog.Logger
	now     func() time.Time
}

// NewPackageBuilder creates a builder staging archives under workDir and
// uploading them into the given storage folder.
func NewPackageBuilder(blobs BlobStore, folder, workDir string, logger *slog.Logger) *PackageBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PackageBuilder{
		blobs:   blobs,
		folder:  folder,
		workDir: workDir,
		logger:  logger,
		now:     time.Now,
	}
}

// Build produces the bundle archive synchronously and returns its storage key
// and public URL. assetDir, when non-empty, names a directory whose files are
// shipped alongside the descriptor.
func (b *PackageBuilder) Build(ctx context.Context, entries []ManifestEntry, childIDs []string, fileName, formatVersion, assetDir string) (string, string, error) {
	key := b.objectKey(fileName)
	if err := b.build(ctx, entries, childIDs, fileName, formatVersion, assetDir); err != nil {
		return "", "", err
	}
	url, err := b.blobs.GetDownloadURL(ctx, key)
	if err != nil {
		return "", "", NewServerError(ErrCodePublish, fmt.Errorf("resolve bundle url: %w", err))
	}
	return key, url, nil
}

// BuildAsync kicks off the archive build and upload on a detached background
// task and immediately returns the deterministic URL the bundle will be
// served from. Background failures are logged, never retried, and never
// surfaced to the original requester.
func (b *PackageBuilder) BuildAsync(ctx context.Context, entries []ManifestEntry, childIDs []string, fileName, formatVersion, assetDir string) (string, error) {
	key := b.objectKey(fileName)
	url, err := b.blobs.GetDownloadURL(ctx, key)
	if err != nil {
		return "", NewServerError(ErrCodePublish, fmt.Errorf("resolve bundle url: %w", err))
	}
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		if err := b.build(bgCtx, entries, childIDs, fileName, formatVersion, assetDir); err != nil {
			b.logger.Error("async bundle build failed", "file", fileName, "error", err)
		}
	}()
	return url, nil
}

// build stages the descriptor and asset files, zips them, and uploads the
// archive. The staging directory and local archive are removed regardless of
// outcome.
func (b *PackageBuilder) build(ctx context.Context, entries []ManifestEntry, childIDs []string, fileName, formatVersion, assetDir string) error {
	staging := filepath.Join(b.workDir, fmt.Sprintf("%d_%s_bundle", b.now().UnixMilli(), uuid.NewString()[:8]))
	if err := os.MkdirAll(staging, 0755); err != nil {
		return NewServerError(ErrCodePublish, fmt.Errorf("create staging directory: %w", err))
	}
	defer func() {
		if err := removeTree(staging); err != nil {
			b.logger.Warn("bundle staging cleanup failed", "dir", staging, "error", err)
		}
	}()

	if formatVersion == "" {
		formatVersion = defaultFormatVersion
	}
	descriptor := bundleDescriptor{
		ID:  "content.archive",
		Ver: formatVersion,
		TS:  b.now().UTC().Format(time.RFC3339),
		Archive: bundleArchive{
			Count:    len(entries),
			Items:    entries,
			Children: childIDs,
		},
	}
	raw, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return NewServerError(ErrCodePublish, fmt.Errorf("encode descriptor: %w", err))
	}
	if err := os.WriteFile(filepath.Join(staging, descriptorName), raw, 0644); err != nil {
		return NewServerError(ErrCodePublish, fmt.Errorf("write descriptor: %w", err))
	}
	if assetDir != "" {
		if err := copyAssets(assetDir, filepath.Join(staging, "assets")); err != nil {
			return NewServerError(ErrCodePublish, err)
		}
	}

	archivePath := filepath.Join(b.workDir, fileName)
	if err := zipDirectory(staging, archivePath); err != nil {
		return NewServerError(ErrCodePublish, err)
	}
	defer func() {
		if err := os.Remove(archivePath); err != nil {
			b.logger.Warn("bundle archive cleanup failed", "file", archivePath, "error", err)
		}
	}()

	file, err := os.Open(archivePath)
	if err != nil {
		return NewServerError(ErrCodePublish, fmt.Errorf("open archive: %w", err))
	}
	defer file.Close()
	if err := b.blobs.Upload(ctx, b.objectKey(fileName), file); err != nil {
		return NewServerError(ErrCodePublish, fmt.Errorf("upload bundle: %w", err))
	}
	return nil
}

func (b *PackageBuilder) objectKey(fileName string) string {
	return b.folder + "/" + fileName
}

// copyAssets copies the regular files under srcDir flat into destDir.
func copyAssets(srcDir, destDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read asset directory: %w", err)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create asset directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(srcDir, entry.Name()), filepath.Join(destDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9._-]+`)

// makeSlug lowercases the name and collapses whitespace and punctuation runs
// into single underscores, for use in bundle filenames.
func makeSlug(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(slug, "_")
}
