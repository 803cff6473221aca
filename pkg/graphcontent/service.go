package graphcontent

import (
	"context"
)

// Service is the content packaging and publish pipeline surface.
//
// Every operation returns a single typed result; failures are one of
// *ClientError, *NotFoundError, *ValidationError, or *ServerError and never
// escape uncaught. No two invocations for the same content id are mutually
// excluded by this core; callers serialize per id upstream.
type Service interface {
	// CreateNode validates and persists a new content node.
	CreateNode(ctx context.Context, node *ContentNode) (string, error)

	// UpdateNode validates and replaces the node persisted under id.
	UpdateNode(ctx context.Context, id string, node *ContentNode) error

	// GetNode fetches one node with its tags and relations.
	GetNode(ctx context.Context, graphID, id string) (*ContentNode, error)

	// AddRelation creates a directed edge between two existing nodes.
	AddRelation(ctx context.Context, graphID, startID string, relation RelationType, endID string) error

	// Upload attaches a raw package file to a node, bumping its package
	// version.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// Extract unpacks a node's uploaded package, resolves media and
	// assessment items, and persists the rewritten body and relations.
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error)

	// Publish finalizes a node into a versioned distributable bundle and
	// marks it Live.
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)

	// Bundle assembles the requested nodes plus their structural descendants
	// into one archive and waits for the upload.
	Bundle(ctx context.Context, req BundleRequest) (*BundleResult, error)

	// BundleAsync is the fire-and-forget variant of Bundle: the returned URL
	// is pre-computed and the archive is produced on a background task whose
	// completion is not observable to the caller.
	BundleAsync(ctx context.Context, req BundleRequest) (*BundleResult, error)
}
