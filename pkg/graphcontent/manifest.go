package graphcontent

import (
	"strings"
)

// Manifest entry keys injected beyond node metadata.
const (
	entryIdentifier = "identifier"
	entryObjectType = "objectType"
	entrySubject    = "subject"
	entryTags       = "tags"
	entryChildren   = "children"
)

// BuildManifest flattens the root nodes into an export-safe manifest. For
// each node it emits a body-free metadata entry plus child pointers for
// structural-membership edges whose cached end-node objectType matches the
// node's own. Children not present among the inputs are resolved through one
// additional fetch round; their own children are not descended into.
//
// The returned child-id list is the flat list of structural child ids
// encountered across all input nodes. Entries are deduplicated by
// identifier.
func BuildManifest(nodes []*ContentNode, fetch func(ids []string) ([]*ContentNode, error)) ([]ManifestEntry, []string, error) {
	var entries []ManifestEntry
	var childIDs []string
	seen := make(map[string]*ContentNode, len(nodes))

	for _, node := range nodes {
		if _, dup := seen[node.Identifier]; dup {
			continue
		}
		seen[node.Identifier] = node
		entry, children := manifestEntry(node, true)
		entries = append(entries, entry)
		childIDs = append(childIDs, children...)
	}

	var missing []string
	for _, id := range childIDs {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 && fetch != nil {
		fetched, err := fetch(missing)
		if err != nil {
			return nil, nil, NewServerError(ErrCodeSearchError, err)
		}
		for _, node := range fetched {
			if _, dup := seen[node.Identifier]; dup {
				continue
			}
			seen[node.Identifier] = node
			// Resolution is breadth-limited: fetched children contribute an
			// entry but are not descended into.
			entry, _ := manifestEntry(node, false)
			entries = append(entries, entry)
		}
	}
	return entries, childIDs, nil
}

// manifestEntry builds the export dictionary for one node. When
// collectChildren is set, structural child pointers are embedded and their
// ids returned.
func manifestEntry(node *ContentNode, collectChildren bool) (ManifestEntry, []string) {
	entry := ManifestEntry(node.Metadata.AsMap(false))
	entry[entryIdentifier] = node.Identifier
	entry[entryObjectType] = node.ObjectType
	entry[entrySubject] = node.GraphID
	if len(node.Tags) > 0 {
		entry[entryTags] = node.Tags
	}
	if !collectChildren {
		return entry, nil
	}

	var children []ChildPointer
	var childIDs []string
	for _, rel := range node.OutRelations {
		if !isStructuralChild(node, rel) {
			continue
		}
		childIDs = append(childIDs, rel.EndNodeID)
		children = append(children, ChildPointer{
			Identifier:   rel.EndNodeID,
			Name:         rel.EndNodeName,
			ObjectType:   rel.EndNodeObjectType,
			RelationType: rel.Type,
			Metadata:     rel.Metadata,
		})
	}
	if len(children) > 0 {
		entry[entryChildren] = children
	}
	return entry, childIDs
}

// isStructuralChild reports whether the edge denotes structural membership of
// a node of the same object type as the parent.
func isStructuralChild(parent *ContentNode, rel Relation) bool {
	return strings.EqualFold(string(rel.Type), string(RelationSequenceMembership)) &&
		strings.EqualFold(rel.EndNodeObjectType, parent.ObjectType)
}
