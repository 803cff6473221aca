package graphcontent

// UploadRequest attaches a raw content package file to a node.
type UploadRequest struct {
	GraphID   string
	ContentID string
	// FilePath is the local path of the uploaded package file.
	FilePath string
	// Folder overrides the default storage folder when non-empty.
	Folder string
}

// UploadResult reports where the uploaded package landed.
type UploadResult struct {
	StorageKey  string `json:"s3Key"`
	DownloadURL string `json:"content_url"`
	PkgVersion  int    `json:"pkgVersion"`
}

// ExtractRequest unpacks a node's uploaded package and resolves its embedded
// media and assessment items.
type ExtractRequest struct {
	GraphID   string
	ContentID string
}

// ExtractResult carries the rewritten body and the relations persisted onto
// the node, plus per-file assessment diagnostics.
type ExtractResult struct {
	Body        string            `json:"body"`
	Relations   []Relation        `json:"relations,omitempty"`
	ItemReports map[string]string `json:"itemReports,omitempty"`
}

// PublishRequest finalizes a node into a distributable bundle.
type PublishRequest struct {
	GraphID   string
	ContentID string
	// CompressContent stages the raw body as a zipped artifact before
	// bundling.
	CompressContent bool
}

// PublishResult reports the published bundle location.
type PublishResult struct {
	StorageKey  string `json:"s3Key"`
	DownloadURL string `json:"content_url"`
	PkgVersion  int    `json:"pkgVersion"`
}

// BundleRequest packages one or more content nodes and their structural
// descendants into a single downloadable archive.
type BundleRequest struct {
	GraphID       string
	ContentIDs    []string
	FileName      string
	FormatVersion string
}

// BundleResult reports the bundle location. For asynchronous builds the URL
// is pre-computed and the archive appears there once the background task
// completes.
type BundleResult struct {
	StorageKey string `json:"s3Key,omitempty"`
	BundleURL  string `json:"bundle"`
}
