package graphcontent

import (
	"context"
	"io"
	"time"
)

// SearchCriteria selects nodes by id set and metadata filters. A zero
// criteria matches nothing useful; callers set at least one filter.
type SearchCriteria struct {
	Identifiers []string
	ObjectType  string
	Statuses    []ContentStatus
	Metadata    map[string]interface{}
	IncludeTags bool
}

// GraphStore is the graph repository collaborator. Implementations must
// return ErrNodeNotFound for missing ids and *ValidationError for nodes that
// fail schema validation.
type GraphStore interface {
	// GetNode fetches one node by id within a graph namespace.
	GetNode(ctx context.Context, graphID, id string) (*ContentNode, error)

	// GetNodes fetches nodes for all ids in one batch call. Missing ids are
	// skipped, not errors.
	GetNodes(ctx context.Context, graphID string, ids []string) ([]*ContentNode, error)

	// SearchNodes returns nodes matching the criteria.
	SearchNodes(ctx context.Context, graphID string, criteria SearchCriteria) ([]*ContentNode, error)

	// ValidateNode checks the node against its object-type schema.
	ValidateNode(ctx context.Context, node *ContentNode) error

	// CreateNode persists a new node and returns its identifier.
	CreateNode(ctx context.Context, node *ContentNode) (string, error)

	// UpdateNode replaces the persisted node state. This is the single point
	// of mutation visible to readers.
	UpdateNode(ctx context.Context, node *ContentNode) error

	// CreateRelation adds a directed edge between two existing nodes.
	CreateRelation(ctx context.Context, graphID, startID string, relation RelationType, endID string) error
}

// ObjectMeta contains metadata about an object in blob storage.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// BlobStore is the object-storage collaborator.
type BlobStore interface {
	// Upload stores the content under objectKey.
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download retrieves the content stored under objectKey.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// GetDownloadURL returns the public URL for objectKey. The URL for a key
	// is deterministic so async bundle callers can be handed it before the
	// object exists.
	GetDownloadURL(ctx context.Context, objectKey string) (string, error)

	// Delete removes the object stored under objectKey.
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves size and content type for objectKey, returning
	// ErrObjectNotFound when absent.
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// AssessmentStore is the assessment collaborator managing item and item-group
// nodes. Failed schema validation surfaces as *ValidationError; UpdateItem on
// a missing identity returns ErrNodeNotFound.
type AssessmentStore interface {
	CreateItem(ctx context.Context, node *ContentNode) (string, error)
	UpdateItem(ctx context.Context, node *ContentNode) (string, error)
	CreateItemGroup(ctx context.Context, node *ContentNode) (string, error)
}
