package graphcontent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Default storage folders for uploaded content and finished bundles.
const (
	DefaultUploadFolder = "content"
	DefaultBundleFolder = "ecar_files"
)

// service implements the Service interface.
type service struct {
	graph        GraphStore
	blobs        BlobStore
	assessments  AssessmentStore
	logger       *slog.Logger
	workDir      string
	uploadFolder string
	bundleFolder string
	now          func() time.Time
}

// Option represents a functional option for configuring the service.
type Option func(*service)

// WithGraphStore sets the graph repository collaborator.
func WithGraphStore(graph GraphStore) Option {
	return func(s *service) {
		s.graph = graph
	}
}

// WithBlobStore sets the object-storage collaborator.
func WithBlobStore(blobs BlobStore) Option {
	return func(s *service) {
		s.blobs = blobs
	}
}

// WithAssessmentStore sets the assessment collaborator.
func WithAssessmentStore(assessments AssessmentStore) Option {
	return func(s *service) {
		s.assessments = assessments
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithWorkDir sets the directory for temp extraction and staging trees.
func WithWorkDir(dir string) Option {
	return func(s *service) {
		s.workDir = dir
	}
}

// WithUploadFolder overrides the storage folder for uploaded content files.
func WithUploadFolder(folder string) Option {
	return func(s *service) {
		s.uploadFolder = folder
	}
}

// WithBundleFolder overrides the storage folder for finished bundles.
func WithBundleFolder(folder string) Option {
	return func(s *service) {
		s.bundleFolder = folder
	}
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new pipeline service instance with the given options.
func New(options ...Option) (Service, error) {
	s := &service{
		logger:       slog.Default(),
		workDir:      os.TempDir(),
		uploadFolder: DefaultUploadFolder,
		bundleFolder: DefaultBundleFolder,
		now:          time.Now,
	}
	for _, option := range options {
		option(s)
	}
	if s.graph == nil {
		return nil, fmt.Errorf("graph store is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.assessments == nil {
		return nil, fmt.Errorf("assessment store is required")
	}
	return s, nil
}

// Node operations

func (s *service) CreateNode(ctx context.Context, node *ContentNode) (string, error) {
	if node == nil {
		return "", NewClientError(ErrCodeBlankObject, "content object is blank")
	}
	if node.GraphID == "" {
		return "", NewClientError(ErrCodeBlankGraphID, "graph id is blank")
	}
	if node.ObjectType == "" {
		node.ObjectType = ObjectTypeContent
	}
	if err := s.graph.ValidateNode(ctx, node); err != nil {
		return "", err
	}
	id, err := s.graph.CreateNode(ctx, node)
	if err != nil {
		return "", &ContentError{ContentID: node.Identifier, Op: "create", Err: err}
	}
	return id, nil
}

func (s *service) UpdateNode(ctx context.Context, id string, node *ContentNode) error {
	if id == "" {
		return NewClientError(ErrCodeBlankObjectID, "content object id is blank")
	}
	if node == nil {
		return NewClientError(ErrCodeBlankObject, "content object is blank")
	}
	if node.GraphID == "" {
		return NewClientError(ErrCodeBlankGraphID, "graph id is blank")
	}
	node.Identifier = id
	if err := s.graph.ValidateNode(ctx, node); err != nil {
		return err
	}
	if err := s.graph.UpdateNode(ctx, node); err != nil {
		return &ContentError{ContentID: id, Op: "update", Err: err}
	}
	return nil
}

func (s *service) GetNode(ctx context.Context, graphID, id string) (*ContentNode, error) {
	if id == "" {
		return nil, NewClientError(ErrCodeBlankObjectID, "content object id is blank")
	}
	node, err := s.graph.GetNode(ctx, graphID, id)
	if err != nil {
		if errors.Is(err, ErrNodeNotFound) {
			return nil, NewNotFoundError(ErrCodeNotFound, fmt.Sprintf("content not found with id: %s", id))
		}
		return nil, &ContentError{ContentID: id, Op: "get", Err: err}
	}
	return node, nil
}

func (s *service) AddRelation(ctx context.Context, graphID, startID string, relation RelationType, endID string) error {
	if graphID == "" {
		return NewClientError(ErrCodeBlankGraphID, "graph id is blank")
	}
	if startID == "" || endID == "" {
		return NewClientError(ErrCodeBlankObjectID, "object id is blank")
	}
	if relation == "" {
		return NewClientError(ErrCodeInvalidRelation, "relation name is blank")
	}
	if err := s.graph.CreateRelation(ctx, graphID, startID, relation, endID); err != nil {
		return &ContentError{ContentID: startID, Op: "add_relation", Err: err}
	}
	return nil
}

// Upload attaches a raw package file to the node, stamps its storage
// location, and bumps pkgVersion. An absent or invalid prior version becomes
// 1.
func (s *service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.GraphID == "" {
		return nil, NewClientError(ErrCodeBlankGraphID, "graph id is blank")
	}
	if req.ContentID == "" {
		return nil, NewClientError(ErrCodeBlankObjectID, "content object id is blank")
	}
	if req.FilePath == "" {
		return nil, NewClientError(ErrCodeBlankObject, "upload file is blank")
	}
	node, err := s.GetNode(ctx, req.GraphID, req.ContentID)
	if err != nil {
		return nil, err
	}

	folder := req.Folder
	if folder == "" {
		folder = s.uploadFolder
	}
	key, url, err := uploadLocalFile(ctx, s.blobs, folder, req.FilePath)
	if err != nil {
		return nil, NewServerError(ErrCodeUploadFile, err)
	}

	node = node.Clone()
	node.Metadata.StorageKey = key
	node.Metadata.DownloadURL = url
	if node.Metadata.PkgVersion < 1 {
		node.Metadata.PkgVersion = 1
	} else {
		node.Metadata.PkgVersion++
	}
	if err := s.graph.UpdateNode(ctx, node); err != nil {
		return nil, &ContentError{ContentID: req.ContentID, Op: "upload", Err: err}
	}
	return &UploadResult{
		StorageKey:  key,
		DownloadURL: url,
		PkgVersion:  node.Metadata.PkgVersion,
	}, nil
}

// Extract unpacks the node's uploaded package, resolves media and assessment
// items, rewrites the markup, and persists the new body. Relations gathered
// during extraction are attached after the node update.
func (s *service) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	if req.GraphID == "" {
		return nil, NewClientError(ErrCodeBlankGraphID, "graph id is blank")
	}
	if req.ContentID == "" {
		return nil, NewClientError(ErrCodeBlankObjectID, "content id is blank")
	}
	node, err := s.GetNode(ctx, req.GraphID, req.ContentID)
	if err != nil {
		return nil, err
	}

	ext := &extractor{
		blobs:   s.blobs,
		assets:  NewAssetResolver(s.graph, s.blobs, s.uploadFolder, s.logger),
		items:   NewAssessmentSynchronizer(s.assessments, s.graph, s.logger),
		workDir: s.workDir,
		logger:  s.logger,
		now:     s.now,
	}
	result, err := ext.run(ctx, node)
	if err != nil {
		return nil, err
	}

	node = node.Clone()
	node.Metadata.Body = result.Body
	if node.Metadata.AppIcon == "" && result.AppIconURL != "" {
		node.Metadata.AppIcon = result.AppIconURL
	}
	if err := s.graph.ValidateNode(ctx, node); err != nil {
		return nil, err
	}
	if err := s.graph.UpdateNode(ctx, node); err != nil {
		return nil, &ContentError{ContentID: req.ContentID, Op: "extract", Err: err}
	}
	for _, rel := range result.Relations {
		if err := s.graph.CreateRelation(ctx, req.GraphID, node.Identifier, rel.Type, rel.EndNodeID); err != nil {
			s.logger.Warn("relation create failed", "contentId", node.Identifier, "endNodeId", rel.EndNodeID, "error", err)
		}
	}
	return &ExtractResult{
		Body:        result.Body,
		Relations:   result.Relations,
		ItemReports: result.ItemReports,
	}, nil
}

// Publish finalizes the node into a versioned bundle and marks it Live.
func (s *service) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if req.GraphID == "" {
		return nil, NewClientError(ErrCodeBlankGraphID, "graph id is blank")
	}
	if req.ContentID == "" {
		return nil, NewClientError(ErrCodeBlankObjectID, "content id is blank")
	}
	node, err := s.GetNode(ctx, req.GraphID, req.ContentID)
	if err != nil {
		return nil, err
	}

	finalizer := &publishFinalizer{
		graph:   s.graph,
		blobs:   s.blobs,
		builder: NewPackageBuilder(s.blobs, s.bundleFolder, s.workDir, s.logger),
		folder:  s.uploadFolder,
		workDir: s.workDir,
		logger:  s.logger,
		now:     s.now,
	}
	updated, key, url, err := finalizer.finalize(ctx, node, req.CompressContent, s.fetchByIDs(ctx, req.GraphID))
	if err != nil {
		return nil, err
	}
	return &PublishResult{
		StorageKey:  key,
		DownloadURL: url,
		PkgVersion:  updated.Metadata.PkgVersion,
	}, nil
}

// Bundle assembles the requested nodes and their structural descendants into
// one archive, waiting for the upload.
func (s *service) Bundle(ctx context.Context, req BundleRequest) (*BundleResult, error) {
	entries, childIDs, fileName, err := s.prepareBundle(ctx, req)
	if err != nil {
		return nil, err
	}
	builder := NewPackageBuilder(s.blobs, s.bundleFolder, s.workDir, s.logger)
	key, url, err := builder.Build(ctx, entries, childIDs, fileName, req.FormatVersion, "")
	if err != nil {
		return nil, err
	}
	return &BundleResult{StorageKey: key, BundleURL: url}, nil
}

// BundleAsync assembles the manifest synchronously, then detaches the
// archive build and upload. The returned URL is valid once the background
// task completes; its failures are logged only.
func (s *service) BundleAsync(ctx context.Context, req BundleRequest) (*BundleResult, error) {
	entries, childIDs, fileName, err := s.prepareBundle(ctx, req)
	if err != nil {
		return nil, err
	}
	builder := NewPackageBuilder(s.blobs, s.bundleFolder, s.workDir, s.logger)
	url, err := builder.BuildAsync(ctx, entries, childIDs, fileName, req.FormatVersion, "")
	if err != nil {
		return nil, err
	}
	return &BundleResult{BundleURL: url}, nil
}

// prepareBundle validates the request, resolves the manifest, and derives
// the bundle filename.
func (s *service) prepareBundle(ctx context.Context, req BundleRequest) ([]ManifestEntry, []string, string, error) {
	if req.GraphID == "" {
		return nil, nil, "", NewClientError(ErrCodeBlankGraphID, "graph id is blank")
	}
	if len(req.ContentIDs) == 0 {
		return nil, nil, "", NewClientError(ErrCodeBlankObjectID, "content identifiers are blank")
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, nil, "", NewClientError(ErrCodeBlankObject, "bundle file name is blank")
	}

	nodes, err := s.graph.SearchNodes(ctx, req.GraphID, SearchCriteria{
		Identifiers: req.ContentIDs,
		IncludeTags: true,
	})
	if err != nil {
		return nil, nil, "", NewServerError(ErrCodeSearchError, err)
	}
	entries, childIDs, err := BuildManifest(nodes, s.fetchByIDs(ctx, req.GraphID))
	if err != nil {
		return nil, nil, "", err
	}
	if len(entries) < len(req.ContentIDs) {
		return nil, nil, "", NewNotFoundError(ErrCodeNotFound, "one or more of the input content identifiers are not found")
	}

	base := strings.Join(strings.Fields(req.FileName), "_")
	fileName := fmt.Sprintf("%s_%d.ecar", base, s.now().UnixMilli())
	return entries, childIDs, fileName, nil
}

// fetchByIDs adapts the graph search into the manifest resolver's fetch
// callback.
func (s *service) fetchByIDs(ctx context.Context, graphID string) func(ids []string) ([]*ContentNode, error) {
	return func(ids []string) ([]*ContentNode, error) {
		return s.graph.SearchNodes(ctx, graphID, SearchCriteria{
			Identifiers: ids,
			IncludeTags: true,
		})
	}
}
