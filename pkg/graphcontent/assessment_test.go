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
)

const assessmentMarkup = `<theme>
  <controller id="ctrl_good" type="Items"/>
  <controller id="ctrl_missing" type="Items"/>
  <controller id="ctrl_bad" type="Items"/>
</theme>`

const goodItemFile = `{
  "identifier": "qs_1",
  "title": "Addition Quiz",
  "total_items": 2,
  "max_score": 4,
  "items": {
    "set1": [
      {"qid": "q1", "qlevel": "HARD", "concepts": [{"identifier": "c1"}]},
      {"template": "mcq2"}
    ]
  }
}`

func setupItemPackage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.ecml"), []byte(assessmentMarkup), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "items"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items", "ctrl_good.json"), []byte(goodItemFile), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items", "ctrl_bad.json"), []byte("{not json"), 0644))
	return dir
}

func TestAssessmentSyncPerFileIsolation(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	sync := graphcontent.NewAssessmentSynchronizer(memory.NewAssessments(graph), graph, nil)

	dir := setupItemPackage(t)
	relations, report, err := sync.Sync(ctx, "domain", dir, "do_owner")
	require.NoError(t, err)

	assert.Equal(t, "2 items added successfully", report["ctrl_good.json"])
	assert.Equal(t, "Error: file does not exist", report["ctrl_missing.json"])
	assert.Equal(t, "Error: unable to parse JSON", report["ctrl_bad.json"])
	assert.NotEmpty(t, relations)
}

func TestAssessmentSyncNormalizesQLevel(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	sync := graphcontent.NewAssessmentSynchronizer(memory.NewAssessments(graph), graph, nil)

	_, _, err := sync.Sync(ctx, "domain", setupItemPackage(t), "do_owner")
	require.NoError(t, err)

	item, err := graph.GetNode(ctx, "domain", "q1")
	require.NoError(t, err)
	assert.Equal(t, graphcontent.ObjectTypeAssessmentItem, item.ObjectType)
	// "HARD" is outside the difficulty domain and falls back to MEDIUM.
	assert.Equal(t, "MEDIUM", item.Metadata.Extra["qlevel"])
	assert.Equal(t, "do_owner", item.Metadata.Extra["usedIn"])
	assert.Equal(t, "q1", item.Metadata.Code)
}

func TestAssessmentSyncCreatesGroupAndConceptRelations(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	sync := graphcontent.NewAssessmentSynchronizer(memory.NewAssessments(graph), graph, nil)

	relations, _, err := sync.Sync(ctx, "domain", setupItemPackage(t), "do_owner")
	require.NoError(t, err)

	var groupID string
	var conceptRelations int
	for _, rel := range relations {
		require.Equal(t, graphcontent.RelationAssociatedTo, rel.Type)
		if rel.EndNodeObjectType == graphcontent.ObjectTypeItemSet {
			groupID = rel.EndNodeID
		} else {
			conceptRelations++
			assert.Equal(t, "c1", rel.EndNodeID)
		}
	}
	assert.Equal(t, 1, conceptRelations)
	require.NotEmpty(t, groupID)

	group, err := graph.GetNode(ctx, "domain", groupID)
	require.NoError(t, err)
	assert.Equal(t, graphcontent.ObjectTypeItemSet, group.ObjectType)
	assert.Equal(t, "qs_1", group.Metadata.Code)
	assert.Equal(t, "Addition Quiz", group.Metadata.Name)
	assert.Equal(t, 2, group.Metadata.Extra["total_items"])
	assert.Equal(t, 4, group.Metadata.Extra["max_score"])
	assert.Equal(t, "materialised", group.Metadata.Extra["type"])
	assert.Len(t, group.Metadata.Extra["memberIds"], 2)
}

func TestAssessmentSyncUpdatesExistingItem(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	assessments := memory.NewAssessments(graph)
	sync := graphcontent.NewAssessmentSynchronizer(assessments, graph, nil)

	_, err := graph.CreateNode(ctx, &graphcontent.ContentNode{
		Identifier: "q1",
		ObjectType: graphcontent.ObjectTypeAssessmentItem,
		GraphID:    "domain",
		Metadata:   graphcontent.Metadata{Extra: map[string]interface{}{"qlevel": "EASY"}},
	})
	require.NoError(t, err)

	_, _, err = sync.Sync(ctx, "domain", setupItemPackage(t), "do_owner")
	require.NoError(t, err)

	item, err := graph.GetNode(ctx, "domain", "q1")
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", item.Metadata.Extra["qlevel"])
	assert.Equal(t, "do_owner", item.Metadata.Extra["usedIn"])
}

func TestAssessmentSyncWithoutStore(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	sync := graphcontent.NewAssessmentSynchronizer(nil, graph, nil)

	// A package that references no item controllers needs no store at all.
	plain := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(plain, "index.ecml"),
		[]byte(`<theme><stage id="s1"/></theme>`), 0644))
	_, _, err := sync.Sync(ctx, "domain", plain, "do_owner")
	require.NoError(t, err)

	// One that does fails with a typed error instead of dereferencing nil.
	_, _, err = sync.Sync(ctx, "domain", setupItemPackage(t), "do_owner")
	var serverErr *graphcontent.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, graphcontent.ErrCodeExtract, serverErr.Code)
}

func TestAssessmentSyncNoMarkup(t *testing.T) {
	ctx := context.Background()
	graph := memory.New()
	sync := graphcontent.NewAssessmentSynchronizer(memory.NewAssessments(graph), graph, nil)

	relations, report, err := sync.Sync(ctx, "domain", t.TempDir(), "do_owner")
	require.NoError(t, err)
	assert.Empty(t, relations)
	assert.Empty(t, report)
}
