package graphcontent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
)

// Metadata keys specific to assessment items and item sets.
const (
	metaUsedIn     = "usedIn"
	metaQLevel     = "qlevel"
	metaMemberIDs  = "memberIds"
	metaTotalItems = "total_items"
	metaMaxScore   = "max_score"
	metaTitle      = "title"
	metaSetType    = "type"

	itemSetTypeMaterialised = "materialised"
)

// itemFile is the parsed shape of one sidecar item-definition file.
type itemFile struct {
	Items      map[string]json.RawMessage `json:"items"`
	TotalItems *int                       `json:"total_items"`
	MaxScore   *int                       `json:"max_score"`
	Title      string                     `json:"title"`
	Identifier string                     `json:"identifier"`
}

// AssessmentSynchronizer scans sidecar item-definition files referenced by a
// package's markup, creates or updates assessment item nodes and a grouping
// node, and returns the relations to attach to the owning content node.
type AssessmentSynchronizer struct {
	assessments AssessmentStore
	graph       GraphStore
	logger      *slog.Logger
	randInt     func(n int) int
}

// NewAssessmentSynchronizer creates a synchronizer backed by the assessment
// collaborator.
func NewAssessmentSynchronizer(assessments AssessmentStore, graph GraphStore, logger *slog.Logger) *AssessmentSynchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssessmentSynchronizer{
		assessments: assessments,
		graph:       graph,
		logger:      logger,
		randInt:     rand.Intn,
	}
}

// Sync processes every item-definition file referenced by the markup under
// dir and returns the relations to persist on the content node plus a
// per-file diagnostic report. One file's parse failure does not abort the
// others.
func (s *AssessmentSynchronizer) Sync(ctx context.Context, graphID, dir, contentID string) ([]Relation, map[string]string, error) {
	report := make(map[string]string)
	doc, err := os.ReadFile(filepath.Join(dir, markupFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, report, nil
		}
		return nil, nil, NewServerError(ErrCodeExtract, fmt.Errorf("read markup: %w", err))
	}
	controllerIDs, err := itemControllerIDs(doc)
	if err != nil {
		return nil, nil, NewServerError(ErrCodeExtract, err)
	}
	if len(controllerIDs) > 0 && s.assessments == nil {
		return nil, nil, NewServerError(ErrCodeExtract, fmt.Errorf("package references item controllers but no assessment store is configured"))
	}

	var relations []Relation
	for _, controllerID := range controllerIDs {
		fileName := controllerID + ".json"
		path := filepath.Join(dir, "items", fileName)
		rels, outcome := s.syncFile(ctx, graphID, path, contentID)
		relations = append(relations, rels...)
		report[fileName] = outcome
	}
	return relations, report, nil
}

// syncFile handles one sidecar file; errors are reduced to its diagnostic
// outcome string.
func (s *AssessmentSynchronizer) syncFile(ctx context.Context, graphID, path, contentID string) ([]Relation, string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "Error: file does not exist"
		}
		return nil, fmt.Sprintf("Error: %v", err)
	}
	var file itemFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, "Error: unable to parse JSON"
	}

	var relations []Relation
	var createdIDs []string
	created, failed := 0, 0
	for _, rawDefs := range file.Items {
		for _, def := range decodeItemDefs(rawDefs) {
			id, err := s.syncItem(ctx, graphID, def, contentID)
			if err != nil {
				failed++
				s.logger.Warn("assessment item rejected", "contentId", contentID, "error", err)
				continue
			}
			created++
			createdIDs = append(createdIDs, id)
			for _, conceptID := range conceptIDs(def) {
				if err := s.graph.CreateRelation(ctx, graphID, id, RelationAssociatedTo, conceptID); err != nil {
					s.logger.Warn("item concept relation failed", "itemId", id, "conceptId", conceptID, "error", err)
				}
				relations = append(relations, Relation{Type: RelationAssociatedTo, EndNodeID: conceptID})
			}
		}
	}

	if len(createdIDs) > 0 {
		groupID, err := s.createGroup(ctx, graphID, file, createdIDs, contentID)
		if err != nil {
			return relations, fmt.Sprintf("Error: item group rejected: %v", err)
		}
		relations = append(relations, Relation{Type: RelationAssociatedTo, EndNodeID: groupID, EndNodeObjectType: ObjectTypeItemSet})
	}
	if failed > 0 {
		return relations, fmt.Sprintf("%d items added, %d rejected", created, failed)
	}
	return relations, fmt.Sprintf("%d items added successfully", created)
}

// decodeItemDefs accepts either a single definition object or a list of
// them.
func decodeItemDefs(raw json.RawMessage) []map[string]interface{} {
	var list []map[string]interface{}
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single map[string]interface{}
	if err := json.Unmarshal(raw, &single); err == nil {
		return []map[string]interface{}{single}
	}
	return nil
}

// syncItem creates or updates one assessment item node. The node is updated
// only when an explicit identity was resolvable; otherwise a fresh item is
// created under a generated code.
func (s *AssessmentSynchronizer) syncItem(ctx context.Context, graphID string, def map[string]interface{}, contentID string) (string, error) {
	identity := stringField(def, "qid")
	if identity == "" {
		identity = stringField(def, "identifier")
	}
	explicit := identity != ""

	extra := make(map[string]interface{}, len(def))
	for k, v := range def {
		extra[k] = v
	}
	extra[metaUsedIn] = contentID
	extra[metaQLevel] = string(NormalizeQLevel(stringField(def, metaQLevel)))

	node := &ContentNode{
		Identifier: identity,
		ObjectType: ObjectTypeAssessmentItem,
		GraphID:    graphID,
		Metadata:   Metadata{Extra: extra},
	}
	if explicit {
		node.Metadata.Code = identity
		node.Metadata.Name = identity
		if id, err := s.assessments.UpdateItem(ctx, node); err == nil {
			return id, nil
		} else if !IsNotFound(err) {
			return "", err
		}
		// Fall through to create when the explicit identity does not exist yet.
		return s.assessments.CreateItem(ctx, node)
	}
	node.Metadata.Name = "Assessment Item"
	node.Metadata.Code = fmt.Sprintf("item_%d", s.randInt(9999)+1)
	return s.assessments.CreateItem(ctx, node)
}

// createGroup builds and persists the ItemSet node grouping the created
// items.
func (s *AssessmentSynchronizer) createGroup(ctx context.Context, graphID string, file itemFile, memberIDs []string, contentID string) (string, error) {
	totalItems := len(memberIDs)
	if file.TotalItems != nil && *file.TotalItems > 0 && *file.TotalItems <= len(memberIDs) {
		totalItems = *file.TotalItems
	}
	maxScore := totalItems
	if file.MaxScore != nil {
		maxScore = *file.MaxScore
	}
	code := file.Identifier
	if code == "" {
		code = fmt.Sprintf("item_set_%d", s.randInt(9999)+1)
	}

	extra := map[string]interface{}{
		metaMemberIDs:  memberIDs,
		metaTotalItems: totalItems,
		metaMaxScore:   maxScore,
		metaSetType:    itemSetTypeMaterialised,
		metaUsedIn:     contentID,
	}
	node := &ContentNode{
		ObjectType: ObjectTypeItemSet,
		GraphID:    graphID,
		Metadata: Metadata{
			Code:  code,
			Extra: extra,
		},
	}
	if file.Title != "" {
		node.Metadata.Name = file.Title
		extra[metaTitle] = file.Title
	}
	return s.assessments.CreateItemGroup(ctx, node)
}

// conceptIDs extracts the concept node ids referenced by an item definition.
func conceptIDs(def map[string]interface{}) []string {
	raw, ok := def["concepts"].([]interface{})
	if !ok {
		return nil
	}
	var ids []string
	for _, entry := range raw {
		concept, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if id := stringField(concept, "identifier"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
