package graphcontent

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// markupFileName is the authored markup entry point inside an unpacked
// content package.
const markupFileName = "index.ecml"

// mediaRefs scans the markup for media elements and returns the mapping of
// referenced media id to local source filename. Elements without both id and
// src are ignored.
func mediaRefs(doc []byte) (map[string]string, error) {
	refs := make(map[string]string)
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse markup: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "media") {
			continue
		}
		var id, src string
		for _, attr := range start.Attr {
			switch strings.ToLower(attr.Name.Local) {
			case "id":
				id = attr.Value
			case "src":
				src = attr.Value
			}
		}
		if id != "" && src != "" {
			refs[id] = src
		}
	}
	return refs, nil
}

// itemControllerIDs returns the ids of "Items"-type controllers referenced by
// the markup. Each id names one sidecar item-definition file.
func itemControllerIDs(doc []byte) ([]string, error) {
	var ids []string
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse markup: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "controller") {
			continue
		}
		var typ, id string
		for _, attr := range start.Attr {
			switch strings.ToLower(attr.Name.Local) {
			case "type":
				typ = attr.Value
			case "id":
				id = attr.Value
			}
		}
		if strings.EqualFold(typ, "Items") && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// rewriteMediaSources substitutes every local media source with its resolved
// URL. refs maps media id to local filename, urls maps media id to the
// resolved location.
func rewriteMediaSources(doc []byte, refs map[string]string, urls map[string]string) []byte {
	out := string(doc)
	for id, src := range refs {
		url, ok := urls[id]
		if !ok || url == "" {
			continue
		}
		out = strings.ReplaceAll(out, `src="`+src+`"`, `src="`+url+`"`)
		out = strings.ReplaceAll(out, `src='`+src+`'`, `src='`+url+`'`)
	}
	return []byte(out)
}

// stripSections removes author-time-only markup substructures (such as items
// and data sections) that must not ship in the published body.
func stripSections(doc []byte, names ...string) []byte {
	out := doc
	for _, name := range names {
		paired := regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(name) + `\b[^>]*>.*?</` + regexp.QuoteMeta(name) + `\s*>`)
		out = paired.ReplaceAll(out, nil)
		selfClosed := regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(name) + `\b[^>]*/>`)
		out = selfClosed.ReplaceAll(out, nil)
	}
	return out
}
