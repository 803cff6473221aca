package graphcontent

import (
	"mime"
	"path/filepath"
	"strings"
)

// MediaType is the closed classification for media assets.
type MediaType string

// Media type constants (typed).
const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypePDF   MediaType = "pdf"
	MediaTypeText  MediaType = "text"
)

// ClassifyMediaFile maps a filename onto the closed MediaType domain by
// suffix. Unrecognized suffixes classify as image.
func ClassifyMediaFile(fileName string) MediaType {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MediaTypePDF
	case ".mp4", ".avi", ".3gpp", ".webm":
		return MediaTypeVideo
	case ".mp3", ".ogg", ".wav":
		return MediaTypeAudio
	case ".txt", ".json", ".xml":
		return MediaTypeText
	default:
		return MediaTypeImage
	}
}

// detectMimeType resolves a MIME type from the filename extension.
func detectMimeType(fileName string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// BodyFormat is the closed classification for a node body's markup encoding.
type BodyFormat int

// Body format constants.
const (
	BodyFormatUnknown BodyFormat = iota
	BodyFormatECML
	BodyFormatJSON
)

// SniffBodyFormat classifies a body string by its leading character.
func SniffBodyFormat(body string) BodyFormat {
	trimmed := strings.TrimSpace(body)
	switch {
	case strings.HasPrefix(trimmed, "<"):
		return BodyFormatECML
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return BodyFormatJSON
	default:
		return BodyFormatUnknown
	}
}

// descriptorFileName is the staged body filename for the format.
func (f BodyFormat) descriptorFileName() string {
	if f == BodyFormatJSON {
		return "index.json"
	}
	return "index.ecml"
}
