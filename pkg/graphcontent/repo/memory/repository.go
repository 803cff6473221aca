package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/knowstack/graph-content/pkg/graphcontent"
)

// Repository implements graphcontent.GraphStore using in-memory storage.
// Suitable for tests and single-process deployments.
type Repository struct {
	mu       sync.RWMutex
	nodes    map[string]*graphcontent.ContentNode // graphID/identifier -> node
	required map[string][]string                  // objectType -> required metadata keys
}

// New creates a new in-memory graph repository.
func New() *Repository {
	return &Repository{
		nodes:    make(map[string]*graphcontent.ContentNode),
		required: make(map[string][]string),
	}
}

// RequireMetadata registers metadata keys that ValidateNode enforces for the
// object type. Used to exercise validation-failure paths.
func (r *Repository) RequireMetadata(objectType string, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.required[objectType] = append(r.required[objectType], keys...)
}

func nodeKey(graphID, id string) string {
	return graphID + "/" + id
}

func (r *Repository) GetNode(ctx context.Context, graphID, id string) (*graphcontent.ContentNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, exists := r.nodes[nodeKey(graphID, id)]
	if !exists {
		return nil, graphcontent.ErrNodeNotFound
	}
	return node.Clone(), nil
}

func (r *Repository) GetNodes(ctx context.Context, graphID string, ids []string) ([]*graphcontent.ContentNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*graphcontent.ContentNode
	for _, id := range ids {
		if node, exists := r.nodes[nodeKey(graphID, id)]; exists {
			result = append(result, node.Clone())
		}
	}
	return result, nil
}

func (r *Repository) SearchNodes(ctx context.Context, graphID string, criteria graphcontent.SearchCriteria) ([]*graphcontent.ContentNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*graphcontent.ContentNode
	for _, node := range r.nodes {
		if node.GraphID != graphID {
			continue
		}
		if !matches(node, criteria) {
			continue
		}
		clone := node.Clone()
		if !criteria.IncludeTags {
			clone.Tags = nil
		}
		result = append(result, clone)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Identifier < result[j].Identifier
	})
	return result, nil
}

func matches(node *graphcontent.ContentNode, criteria graphcontent.SearchCriteria) bool {
	if len(criteria.Identifiers) > 0 {
		found := false
		for _, id := range criteria.Identifiers {
			if node.Identifier == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if criteria.ObjectType != "" && !strings.EqualFold(node.ObjectType, criteria.ObjectType) {
		return false
	}
	if len(criteria.Statuses) > 0 {
		found := false
		for _, status := range criteria.Statuses {
			if node.Metadata.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for key, want := range criteria.Metadata {
		if got, ok := node.Metadata.Extra[key]; !ok || got != want {
			return false
		}
	}
	return true
}

// ValidateNode enforces the basic node schema plus any metadata keys
// registered via RequireMetadata.
func (r *Repository) ValidateNode(ctx context.Context, node *graphcontent.ContentNode) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validateLocked(node)
}

func (r *Repository) validateLocked(node *graphcontent.ContentNode) error {
	var messages []string
	if node == nil {
		return &graphcontent.ValidationError{Messages: []string{"node is nil"}}
	}
	if node.ObjectType == "" {
		messages = append(messages, "objectType is required")
	}
	if node.GraphID == "" {
		messages = append(messages, "graph id is required")
	}
	for _, key := range r.required[node.ObjectType] {
		if _, ok := node.Metadata.Extra[key]; !ok {
			messages = append(messages, fmt.Sprintf("metadata %s is required", key))
		}
	}
	if len(messages) > 0 {
		return &graphcontent.ValidationError{NodeID: node.Identifier, Messages: messages}
	}
	return nil
}

func (r *Repository) CreateNode(ctx context.Context, node *graphcontent.ContentNode) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.validateLocked(node); err != nil {
		return "", err
	}
	clone := node.Clone()
	if clone.Identifier == "" {
		clone.Identifier = "do_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	r.nodes[nodeKey(clone.GraphID, clone.Identifier)] = clone
	return clone.Identifier, nil
}

func (r *Repository) UpdateNode(ctx context.Context, node *graphcontent.ContentNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nodeKey(node.GraphID, node.Identifier)
	if _, exists := r.nodes[key]; !exists {
		return graphcontent.ErrNodeNotFound
	}
	r.nodes[key] = node.Clone()
	return nil
}

// CreateRelation appends the edge to the start node, caching the end node's
// display attributes when it exists in this graph.
func (r *Repository) CreateRelation(ctx context.Context, graphID, startID string, relation graphcontent.RelationType, endID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start, exists := r.nodes[nodeKey(graphID, startID)]
	if !exists {
		return graphcontent.ErrNodeNotFound
	}
	rel := graphcontent.Relation{Type: relation, EndNodeID: endID}
	if end, ok := r.nodes[nodeKey(graphID, endID)]; ok {
		rel.EndNodeName = end.Metadata.Name
		rel.EndNodeObjectType = end.ObjectType
	}
	start.OutRelations = append(start.OutRelations, rel)
	return nil
}

// Assessments implements graphcontent.AssessmentStore on top of a
// Repository, persisting items and item groups as graph nodes so tests can
// read them back.
type Assessments struct {
	repo *Repository
}

// NewAssessments creates an assessment store persisting into repo.
func NewAssessments(repo *Repository) *Assessments {
	return &Assessments{repo: repo}
}

func (a *Assessments) CreateItem(ctx context.Context, node *graphcontent.ContentNode) (string, error) {
	return a.repo.CreateNode(ctx, node)
}

func (a *Assessments) UpdateItem(ctx context.Context, node *graphcontent.ContentNode) (string, error) {
	if node.Identifier == "" {
		return "", graphcontent.ErrNodeNotFound
	}
	a.repo.mu.Lock()
	defer a.repo.mu.Unlock()
	key := nodeKey(node.GraphID, node.Identifier)
	if _, exists := a.repo.nodes[key]; !exists {
		return "", graphcontent.ErrNodeNotFound
	}
	if err := a.repo.validateLocked(node); err != nil {
		return "", err
	}
	a.repo.nodes[key] = node.Clone()
	return node.Identifier, nil
}

func (a *Assessments) CreateItemGroup(ctx context.Context, node *graphcontent.ContentNode) (string, error) {
	return a.repo.CreateNode(ctx, node)
}
