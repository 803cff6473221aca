package graphcontent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMediaFile(t *testing.T) {
	tests := []struct {
		fileName string
		want     MediaType
	}{
		{"guide.pdf", MediaTypePDF},
		{"clip.MP4", MediaTypeVideo},
		{"clip.webm", MediaTypeVideo},
		{"lesson.3gpp", MediaTypeVideo},
		{"sound.mp3", MediaTypeAudio},
		{"sound.ogg", MediaTypeAudio},
		{"notes.txt", MediaTypeText},
		{"data.json", MediaTypeText},
		{"picture.png", MediaTypeImage},
		{"picture.jpg", MediaTypeImage},
		{"no-extension", MediaTypeImage},
		{"weird.xyz", MediaTypeImage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyMediaFile(tt.fileName), tt.fileName)
	}
}

func TestNormalizeQLevel(t *testing.T) {
	assert.Equal(t, QLevelEasy, NormalizeQLevel("EASY"))
	assert.Equal(t, QLevelRare, NormalizeQLevel("RARE"))
	assert.Equal(t, QLevelMedium, NormalizeQLevel(""))
	assert.Equal(t, QLevelMedium, NormalizeQLevel("HARD"))
	assert.Equal(t, QLevelMedium, NormalizeQLevel("easy"))
}

func TestSniffBodyFormat(t *testing.T) {
	assert.Equal(t, BodyFormatECML, SniffBodyFormat("<theme></theme>"))
	assert.Equal(t, BodyFormatECML, SniffBodyFormat("  \n<theme/>"))
	assert.Equal(t, BodyFormatJSON, SniffBodyFormat(`{"theme": {}}`))
	assert.Equal(t, BodyFormatJSON, SniffBodyFormat(`[1, 2]`))
	assert.Equal(t, BodyFormatUnknown, SniffBodyFormat(""))
	assert.Equal(t, BodyFormatUnknown, SniffBodyFormat("plain text"))
}

func TestBodyFormatDescriptorFileName(t *testing.T) {
	assert.Equal(t, "index.json", BodyFormatJSON.descriptorFileName())
	assert.Equal(t, "index.ecml", BodyFormatECML.descriptorFileName())
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", detectMimeType("doc.pdf"))
	assert.Equal(t, "application/octet-stream", detectMimeType("file.unknownext"))
}
