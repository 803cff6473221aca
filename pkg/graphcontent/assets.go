package graphcontent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// AssetResolver resolves the media identifiers referenced by a content
// package's markup to download URLs, creating or updating MediaAsset nodes
// along the way. An asset whose download URL is already known is never
// re-uploaded.
type AssetResolver struct {
	graph  GraphStore
	blobs  BlobStore
	folder string
	logger *slog.Logger
	now    func() time.Time
}

// NewAssetResolver creates a resolver uploading into the given storage
// folder.
func NewAssetResolver(graph GraphStore, blobs BlobStore, folder string, logger *slog.Logger) *AssetResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetResolver{
		graph:  graph,
		blobs:  blobs,
		folder: folder,
		logger: logger,
		now:    time.Now,
	}
}

// Resolve determines which referenced media ids already exist as nodes with a
// resolved download location, uploads the rest from assetDir, and returns the
// id to URL map. refs maps referenced media id to local filename. A
// validation failure on any asset aborts the resolution with the validator's
// response surfaced unchanged; already-uploaded files stay in storage.
func (r *AssetResolver) Resolve(ctx context.Context, graphID, assetDir string, refs map[string]string) (map[string]string, error) {
	urls := make(map[string]string, len(refs))
	if len(refs) == 0 {
		return urls, nil
	}

	ids := make([]string, 0, len(refs))
	for id := range refs {
		ids = append(ids, id)
	}
	existing, err := r.graph.GetNodes(ctx, graphID, ids)
	if err != nil {
		return nil, NewServerError(ErrCodeExtract, fmt.Errorf("fetch media nodes: %w", err))
	}
	known := make(map[string]*ContentNode, len(existing))
	for _, node := range existing {
		known[node.Identifier] = node
	}

	for id, fileName := range refs {
		node, exists := known[id]
		if exists && node.Metadata.DownloadURL != "" {
			urls[id] = node.Metadata.DownloadURL
			continue
		}
		localPath := filepath.Join(assetDir, fileName)
		if _, err := os.Stat(localPath); os.IsNotExist(err) {
			r.logger.Warn("referenced media file missing from package", "mediaId", id, "file", fileName)
			continue
		}
		uploaded, err := r.uploadRenamed(ctx, localPath)
		if err != nil {
			return nil, err
		}
		if exists {
			node = node.Clone()
			node.Metadata.DownloadURL = uploaded
			if err := r.graph.ValidateNode(ctx, node); err != nil {
				return nil, err
			}
			if err := r.graph.UpdateNode(ctx, node); err != nil {
				return nil, NewServerError(ErrCodeExtract, fmt.Errorf("update media node %s: %w", id, err))
			}
		} else {
			node = newMediaAssetNode(graphID, id, fileName, uploaded)
			if err := r.graph.ValidateNode(ctx, node); err != nil {
				return nil, err
			}
			if _, err := r.graph.CreateNode(ctx, node); err != nil {
				return nil, NewServerError(ErrCodeExtract, fmt.Errorf("create media node %s: %w", id, err))
			}
		}
		urls[id] = uploaded
	}
	return urls, nil
}

// uploadRenamed renames the local file to a collision-avoiding
// timestamp-prefixed name, uploads it, and returns the download URL.
func (r *AssetResolver) uploadRenamed(ctx context.Context, localPath string) (string, error) {
	dir, base := filepath.Split(localPath)
	renamed := filepath.Join(dir, fmt.Sprintf("%d_%s", r.now().UnixMilli(), base))
	if err := os.Rename(localPath, renamed); err != nil {
		return "", NewServerError(ErrCodeExtract, fmt.Errorf("rename asset %s: %w", base, err))
	}
	_, url, err := uploadLocalFile(ctx, r.blobs, r.folder, renamed)
	if err != nil {
		return "", NewServerError(ErrCodeUploadFile, err)
	}
	return url, nil
}

// newMediaAssetNode builds a MediaAsset content node for a media id whose
// file was just uploaded.
func newMediaAssetNode(graphID, mediaID, fileName, url string) *ContentNode {
	return &ContentNode{
		Identifier: mediaID,
		ObjectType: ObjectTypeContent,
		GraphID:    graphID,
		Metadata: Metadata{
			Name:        mediaID,
			Code:        mediaID,
			Body:        "<content></content>",
			Status:      StatusLive,
			ContentType: "Asset",
			PkgVersion:  1,
			MimeType:    detectMimeType(fileName),
			MediaType:   ClassifyMediaFile(fileName),
			DownloadURL: url,
		},
	}
}

// uploadLocalFile uploads the file at path under folder and returns the
// storage key and public URL.
func uploadLocalFile(ctx context.Context, blobs BlobStore, folder, path string) (string, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	key := folder + "/" + filepath.Base(path)
	if err := blobs.Upload(ctx, key, file); err != nil {
		return "", "", fmt.Errorf("upload %s: %w", key, err)
	}
	url, err := blobs.GetDownloadURL(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("resolve url for %s: %w", key, err)
	}
	return key, url, nil
}
