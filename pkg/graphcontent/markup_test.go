package graphcontent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarkup = `<theme id="theme.1" ver="0.2">
  <manifest>
    <media id="img_1" src="icon.png" type="image"/>
    <media id="snd_1" src="intro.mp3" type="audio"/>
    <media id="broken" type="image"/>
  </manifest>
  <controller id="ctrl_items" type="Items"/>
  <controller id="ctrl_data" type="Data"/>
  <stage id="stage1">
    <image asset="img_1" src="icon.png"/>
  </stage>
  <items>
    <item id="q1"/>
  </items>
  <data>raw author data</data>
</theme>`

func TestMediaRefs(t *testing.T) {
	refs, err := mediaRefs([]byte(sampleMarkup))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"img_1": "icon.png",
		"snd_1": "intro.mp3",
	}, refs)
}

func TestItemControllerIDs(t *testing.T) {
	ids, err := itemControllerIDs([]byte(sampleMarkup))
	require.NoError(t, err)
	assert.Equal(t, []string{"ctrl_items"}, ids)
}

func TestRewriteMediaSources(t *testing.T) {
	refs := map[string]string{"img_1": "icon.png", "snd_1": "intro.mp3"}
	urls := map[string]string{"img_1": "https://cdn.example.com/123_icon.png"}

	out := string(rewriteMediaSources([]byte(sampleMarkup), refs, urls))
	assert.Contains(t, out, `src="https://cdn.example.com/123_icon.png"`)
	assert.NotContains(t, out, `src="icon.png"`)
	// No URL resolved for snd_1; its source is left alone.
	assert.Contains(t, out, `src="intro.mp3"`)
}

func TestStripSections(t *testing.T) {
	out := string(stripSections([]byte(sampleMarkup), "items", "data"))
	assert.NotContains(t, out, "<items")
	assert.NotContains(t, out, "raw author data")
	assert.Contains(t, out, "<stage")
	assert.Contains(t, out, "<manifest>")
}

func TestStripSectionsSelfClosing(t *testing.T) {
	doc := `<theme><items/><stage id="s1"/></theme>`
	out := string(stripSections([]byte(doc), "items"))
	assert.Equal(t, `<theme><stage id="s1"/></theme>`, out)
}

func TestMediaRefsMalformedMarkup(t *testing.T) {
	// The decoder runs in non-strict mode; stray ampersands and unclosed
	// elements still yield the declared media.
	doc := `<theme><media id="m1" src="a & b.png"/><stage>`
	refs, err := mediaRefs([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "a & b.png", refs["m1"])
}
