package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/knowstack/graph-content/pkg/graphcontent"
)

// ContentHandler handles HTTP requests for content using pkg/graphcontent.
type ContentHandler struct {
	service graphcontent.Service
	graphID string
}

// NewContentHandler creates a new content handler serving graphID.
func NewContentHandler(service graphcontent.Service, graphID string) *ContentHandler {
	return &ContentHandler{
		service: service,
		graphID: graphID,
	}
}

// Routes returns the routes for content.
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateContent)
	r.Get("/{id}", h.GetContent)
	r.Put("/{id}", h.UpdateContent)
	r.Post("/{id}/relations", h.AddRelation)

	r.Post("/{id}/upload", h.UploadContent)
	r.Post("/{id}/extract", h.ExtractContent)
	r.Post("/{id}/publish", h.PublishContent)

	r.Post("/bundle", h.BundleContent)

	return r
}

// CreateContentRequest is the request body for creating a content node.
type CreateContentRequest struct {
	Identifier string                 `json:"identifier,omitempty"`
	ObjectType string                 `json:"objectType,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
	Tags       []string               `json:"tags,omitempty"`
}

// ContentResponse is the response body for a content node.
type ContentResponse struct {
	Identifier string                  `json:"identifier"`
	ObjectType string                  `json:"objectType"`
	GraphID    string                  `json:"graphId"`
	Metadata   map[string]interface{}  `json:"metadata"`
	Tags       []string                `json:"tags,omitempty"`
	Relations  []graphcontent.Relation `json:"relations,omitempty"`
}

// AddRelationRequest is the request body for creating a relation.
type AddRelationRequest struct {
	RelationType string `json:"relationType"`
	EndNodeID    string `json:"endNodeId"`
}

// BundleContentRequest is the request body for bundling content nodes.
type BundleContentRequest struct {
	ContentIDs    []string `json:"content_identifiers"`
	FileName      string   `json:"file_name,omitempty"`
	FormatVersion string   `json:"format_version,omitempty"`
}

func contentResponse(node *graphcontent.ContentNode) ContentResponse {
	return ContentResponse{
		Identifier: node.Identifier,
		ObjectType: node.ObjectType,
		GraphID:    node.GraphID,
		Metadata:   node.Metadata.AsMap(true),
		Tags:       node.Tags,
		Relations:  node.OutRelations,
	}
}

// errorResponse is the error body rendered for failed requests.
type errorResponse struct {
	Error   string   `json:"err"`
	Message string   `json:"msg"`
	Details []string `json:"details,omitempty"`
}

// renderError maps the fault taxonomy onto HTTP status codes.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var clientErr *graphcontent.ClientError
	var notFoundErr *graphcontent.NotFoundError
	var validationErr *graphcontent.ValidationError
	var serverErr *graphcontent.ServerError

	switch {
	case errors.As(err, &clientErr):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: clientErr.Code, Message: clientErr.Message})
	case errors.As(err, &validationErr):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "ERR_NODE_VALIDATION",
			Message: "node failed validation",
			Details: validationErr.Messages,
		})
	case errors.As(err, &notFoundErr):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: notFoundErr.Code, Message: notFoundErr.Message})
	case errors.Is(err, graphcontent.ErrNodeNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: graphcontent.ErrCodeNotFound, Message: err.Error()})
	case errors.As(err, &serverErr):
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: serverErr.Code, Message: serverErr.Error()})
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "ERR_INTERNAL", Message: err.Error()})
	}
}

// graphIDFor resolves the graph namespace for a request, allowing an override
// via the taxonomy query parameter.
func (h *ContentHandler) graphIDFor(r *http.Request) string {
	if v := r.URL.Query().Get("taxonomyId"); v != "" {
		return v
	}
	return h.graphID
}

// CreateContent creates a new content node.
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	var req CreateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	objectType := req.ObjectType
	if objectType == "" {
		objectType = graphcontent.ObjectTypeContent
	}
	node := &graphcontent.ContentNode{
		Identifier: req.Identifier,
		ObjectType: objectType,
		GraphID:    h.graphIDFor(r),
		Metadata:   graphcontent.MetadataFromMap(req.Metadata),
		Tags:       req.Tags,
	}

	id, err := h.service.CreateNode(r.Context(), node)
	if err != nil {
		slog.Error("Failed to create content", "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Content created", "content_id", id)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"identifier": id})
}

// GetContent retrieves a content node by ID.
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	node, err := h.service.GetNode(r.Context(), h.graphIDFor(r), id)
	if err != nil {
		slog.Error("Failed to get content", "content_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, contentResponse(node))
}

// UpdateContent replaces the metadata of a content node.
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CreateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	node, err := h.service.GetNode(r.Context(), h.graphIDFor(r), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	node.Metadata = graphcontent.MetadataFromMap(req.Metadata)
	if req.Tags != nil {
		node.Tags = req.Tags
	}

	if err := h.service.UpdateNode(r.Context(), id, node); err != nil {
		slog.Error("Failed to update content", "content_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Content updated", "content_id", id)
	render.JSON(w, r, map[string]string{"identifier": id})
}

// AddRelation creates a directed relation from the content node.
func (h *ContentHandler) AddRelation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AddRelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.service.AddRelation(r.Context(), h.graphIDFor(r), id,
		graphcontent.RelationType(req.RelationType), req.EndNodeID)
	if err != nil {
		slog.Error("Failed to add relation", "content_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Relation added", "content_id", id, "relation", req.RelationType, "end_node", req.EndNodeID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"identifier": id})
}

const maxUploadBytes = 256 << 20 // 256 MiB

// UploadContent attaches an uploaded package file to a content node.
func (h *ContentHandler) UploadContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Upload works on local paths; stage the part in a temp file first.
	localPath, cleanup, err := stageUpload(file, header.Filename)
	if err != nil {
		slog.Error("Failed to stage upload", "content_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer cleanup()

	result, err := h.service.Upload(r.Context(), graphcontent.UploadRequest{
		GraphID:   h.graphIDFor(r),
		ContentID: id,
		FilePath:  localPath,
		Folder:    r.URL.Query().Get("folder"),
	})
	if err != nil {
		slog.Error("Failed to upload content", "content_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Content uploaded", "content_id", id, "key", result.StorageKey)
	render.JSON(w, r, result)
}

func stageUpload(file io.Reader, filename string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "upload")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	name := filepath.Base(filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload.zip"
	}
	localPath := filepath.Join(dir, name)

	out, err := os.Create(localPath)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		cleanup()
		return "", nil, err
	}
	return localPath, cleanup, nil
}

// ExtractContent unpacks a node's uploaded package and resolves its media and
// assessment items.
func (h *ContentHandler) ExtractContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.service.Extract(r.Context(), graphcontent.ExtractRequest{
		GraphID:   h.graphIDFor(r),
		ContentID: id,
	})
	if err != nil {
		slog.Error("Failed to extract content", "content_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Content extracted", "content_id", id)
	render.JSON(w, r, result)
}

// PublishContent finalizes a node into a versioned distributable bundle.
func (h *ContentHandler) PublishContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	compress := strings.EqualFold(r.URL.Query().Get("compress"), "true")
	result, err := h.service.Publish(r.Context(), graphcontent.PublishRequest{
		GraphID:         h.graphIDFor(r),
		ContentID:       id,
		CompressContent: compress,
	})
	if err != nil {
		slog.Error("Failed to publish content", "content_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Content published", "content_id", id, "pkg_version", result.PkgVersion)
	render.JSON(w, r, result)
}

// BundleContent assembles the requested nodes into one downloadable archive.
// With ?async=true the archive is produced in the background and the
// pre-computed URL is returned immediately.
func (h *ContentHandler) BundleContent(w http.ResponseWriter, r *http.Request) {
	var req BundleContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bundleReq := graphcontent.BundleRequest{
		GraphID:       h.graphIDFor(r),
		ContentIDs:    req.ContentIDs,
		FileName:      req.FileName,
		FormatVersion: req.FormatVersion,
	}

	var result *graphcontent.BundleResult
	var err error
	if strings.EqualFold(r.URL.Query().Get("async"), "true") {
		result, err = h.service.BundleAsync(r.Context(), bundleReq)
	} else {
		result, err = h.service.Bundle(r.Context(), bundleReq)
	}
	if err != nil {
		slog.Error("Failed to bundle content", "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Content bundled", "count", len(req.ContentIDs))
	render.JSON(w, r, result)
}
