package graphcontent

import (
	"time"
)

// ContentStatus is the domain type for content lifecycle states.
type ContentStatus string

// Content status constants (typed).
const (
	StatusDraft   ContentStatus = "Draft"
	StatusLive    ContentStatus = "Live"
	StatusRetired ContentStatus = "Retired"
)

// RelationType is the domain type for directed graph edge names.
type RelationType string

// Relation type constants. RelationSequenceMembership marks the structural
// "is an ordered child of" edge used for bundle resolution.
const (
	RelationSequenceMembership RelationType = "hasSequenceMember"
	RelationAssociatedTo       RelationType = "associatedTo"
)

// QLevel is the difficulty level of an assessment item.
type QLevel string

// Assessment item difficulty levels.
const (
	QLevelEasy      QLevel = "EASY"
	QLevelMedium    QLevel = "MEDIUM"
	QLevelDifficult QLevel = "DIFFICULT"
	QLevelRare      QLevel = "RARE"
)

// NormalizeQLevel maps a raw difficulty value onto the closed QLevel domain.
// Missing or unrecognized input falls back to MEDIUM.
func NormalizeQLevel(raw string) QLevel {
	switch QLevel(raw) {
	case QLevelEasy, QLevelMedium, QLevelDifficult, QLevelRare:
		return QLevel(raw)
	default:
		return QLevelMedium
	}
}

// Object type constants for the node kinds this pipeline creates.
const (
	ObjectTypeContent        = "Content"
	ObjectTypeAssessmentItem = "AssessmentItem"
	ObjectTypeItemSet        = "ItemSet"
)

// Relation represents a directed edge leaving a content node. End-node
// display attributes are cached on the edge so exports do not need a second
// node lookup.
type Relation struct {
	Type              RelationType           `json:"relationType"`
	EndNodeID         string                 `json:"identifier"`
	EndNodeName       string                 `json:"name,omitempty"`
	EndNodeObjectType string                 `json:"objectType,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// Metadata is the typed metadata of a content node. Commonly-accessed
// pipeline fields are first-class; authoring-defined extension fields live
// in Extra.
type Metadata struct {
	Name            string
	Code            string
	Body            string
	Status          ContentStatus
	ContentType     string
	PkgVersion      int
	MimeType        string
	MediaType       MediaType
	DownloadURL     string
	StorageKey      string
	AppIcon         string
	ArtifactURL     string
	LastPublishedOn time.Time
	Size            int64
	Extra           map[string]interface{}
}

// Metadata map keys as persisted and exported. These match the wire names
// consumed by downstream players.
const (
	metaName            = "name"
	metaCode            = "code"
	metaBody            = "body"
	metaStatus          = "status"
	metaContentType     = "contentType"
	metaPkgVersion      = "pkgVersion"
	metaMimeType        = "mimeType"
	metaMediaType       = "mediaType"
	metaDownloadURL     = "downloadUrl"
	metaStorageKey      = "s3Key"
	metaAppIcon         = "appIcon"
	metaArtifactURL     = "artifactUrl"
	metaLastPublishedOn = "lastPublishedOn"
	metaSize            = "size"
)

// AsMap flattens the metadata into the persisted key space. Body is included
// only when includeBody is set; manifest construction always calls with
// includeBody=false.
func (m Metadata) AsMap(includeBody bool) map[string]interface{} {
	out := make(map[string]interface{}, len(m.Extra)+14)
	for k, v := range m.Extra {
		if k == metaBody && !includeBody {
			continue
		}
		out[k] = v
	}
	if m.Name != "" {
		out[metaName] = m.Name
	}
	if m.Code != "" {
		out[metaCode] = m.Code
	}
	if includeBody && m.Body != "" {
		out[metaBody] = m.Body
	}
	if m.Status != "" {
		out[metaStatus] = string(m.Status)
	}
	if m.ContentType != "" {
		out[metaContentType] = m.ContentType
	}
	if m.PkgVersion != 0 {
		out[metaPkgVersion] = m.PkgVersion
	}
	if m.MimeType != "" {
		out[metaMimeType] = m.MimeType
	}
	if m.MediaType != "" {
		out[metaMediaType] = string(m.MediaType)
	}
	if m.DownloadURL != "" {
		out[metaDownloadURL] = m.DownloadURL
	}
	if m.StorageKey != "" {
		out[metaStorageKey] = m.StorageKey
	}
	if m.AppIcon != "" {
		out[metaAppIcon] = m.AppIcon
	}
	if m.ArtifactURL != "" {
		out[metaArtifactURL] = m.ArtifactURL
	}
	if !m.LastPublishedOn.IsZero() {
		out[metaLastPublishedOn] = m.LastPublishedOn.UTC().Format(time.RFC3339)
	}
	if m.Size != 0 {
		out[metaSize] = m.Size
	}
	return out
}

// MetadataFromMap rebuilds typed metadata from the persisted key space.
// Unknown keys are preserved in Extra.
func MetadataFromMap(raw map[string]interface{}) Metadata {
	var m Metadata
	for k, v := range raw {
		switch k {
		case metaName:
			m.Name, _ = v.(string)
		case metaCode:
			m.Code, _ = v.(string)
		case metaBody:
			m.Body, _ = v.(string)
		case metaStatus:
			if s, ok := v.(string); ok {
				m.Status = ContentStatus(s)
			}
		case metaContentType:
			m.ContentType, _ = v.(string)
		case metaPkgVersion:
			m.PkgVersion = toInt(v)
		case metaMimeType:
			m.MimeType, _ = v.(string)
		case metaMediaType:
			if s, ok := v.(string); ok {
				m.MediaType = MediaType(s)
			}
		case metaDownloadURL:
			m.DownloadURL, _ = v.(string)
		case metaStorageKey:
			m.StorageKey, _ = v.(string)
		case metaAppIcon:
			m.AppIcon, _ = v.(string)
		case metaArtifactURL:
			m.ArtifactURL, _ = v.(string)
		case metaLastPublishedOn:
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					m.LastPublishedOn = t
				}
			}
		case metaSize:
			m.Size = int64(toInt(v))
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]interface{})
			}
			m.Extra[k] = v
		}
	}
	return m
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// ContentNode represents one authored content item or asset persisted in the
// graph store. Identifiers are unique within a graph (taxonomy) namespace.
type ContentNode struct {
	Identifier   string
	ObjectType   string
	GraphID      string
	Metadata     Metadata
	Tags         []string
	OutRelations []Relation
}

// Clone returns a deep copy so pipeline staging never mutates a node that
// other readers may hold.
func (n *ContentNode) Clone() *ContentNode {
	if n == nil {
		return nil
	}
	out := *n
	if n.Metadata.Extra != nil {
		extra := make(map[string]interface{}, len(n.Metadata.Extra))
		for k, v := range n.Metadata.Extra {
			extra[k] = v
		}
		out.Metadata.Extra = extra
	}
	if n.Tags != nil {
		out.Tags = append([]string(nil), n.Tags...)
	}
	if n.OutRelations != nil {
		out.OutRelations = append([]Relation(nil), n.OutRelations...)
	}
	return &out
}

// ChildPointer is the lightweight child reference embedded in a manifest
// entry for nodes with structural children.
type ChildPointer struct {
	Identifier   string                 `json:"identifier"`
	Name         string                 `json:"name,omitempty"`
	ObjectType   string                 `json:"objectType,omitempty"`
	RelationType RelationType           `json:"relation"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ManifestEntry is the flattened, export-safe description of one node. It
// never carries the body key.
type ManifestEntry map[string]interface{}
