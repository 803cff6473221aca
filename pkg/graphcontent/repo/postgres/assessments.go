package postgres

import (
	"context"

	"github.com/knowstack/graph-content/pkg/graphcontent"
)

// Assessments implements graphcontent.AssessmentStore on top of a Repository,
// persisting items and item groups as content_nodes rows.
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
	if err := a.repo.UpdateNode(ctx, node); err != nil {
		return "", err
	}
	return node.Identifier, nil
}

func (a *Assessments) CreateItemGroup(ctx context.Context, node *graphcontent.ContentNode) (string, error) {
	return a.repo.CreateNode(ctx, node)
}
