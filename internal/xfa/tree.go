// Package xfa models the XFA datasets packet of a form PDF as an
// ordered XML tree and moves it in and out of the document.
//
// The datasets grammar is irregular: node order is significant,
// repeated sibling tags represent list entries, and empty elements
// carrying xfa:dataNode="dataGroup" mark UI grouping constructs the
// renderer depends on. Serialization therefore splices recorded edits
// into the original packet bytes: untouched regions keep their exact
// source representation, including attribute quoting, character
// references and empty-element shape.
package xfa

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

var (
	// ErrTreeParse reports a malformed or unrecognized datasets packet.
	ErrTreeParse = errors.New("malformed datasets packet")

	// ErrTreeSerialize reports a failure writing the tree back out.
	ErrTreeSerialize = errors.New("datasets serialization failed")

	// ErrPathNotFound reports that a schema path has no counterpart in
	// the tree. The engine treats this as a schema/document mismatch,
	// not a recoverable condition.
	ErrPathNotFound = errors.New("path not found in datasets")
)

// Container tags that carry no form semantics and are skipped when
// building field paths.
var containerTags = map[string]bool{
	"datasets": true,
	"data":     true,
}

// span is the byte range of one element's content in the original
// packet, in document order.
type span struct {
	contentStart int
	contentEnd   int
}

// Datasets is one parsed datasets packet. It is owned by a single fill
// run and must not be shared across goroutines; sibling insertion
// order is meaningful and concurrent mutation would interleave it.
type Datasets struct {
	doc *etree.Document

	raw   []byte
	spans []span
	order []*etree.Element
	index map[*etree.Element]int

	// Recorded edits against original elements. Elements created by
	// AppendSibling are rendered live at serialization instead.
	textEdits map[int]string
	appended  map[int][]*etree.Element
}

// ParseDatasets parses the raw packet bytes. The original bytes are
// retained; Serialize reproduces them exactly outside of edited
// regions.
func ParseDatasets(raw []byte) (*Datasets, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTreeParse, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrTreeParse)
	}

	spans, err := elementSpans(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTreeParse, err)
	}
	order := elementsInOrder(doc.Root())
	if len(order) != len(spans) {
		return nil, fmt.Errorf("%w: element structure mismatch", ErrTreeParse)
	}
	index := make(map[*etree.Element]int, len(order))
	for i, el := range order {
		index[el] = i
	}

	return &Datasets{
		doc:       doc,
		raw:       append([]byte(nil), raw...),
		spans:     spans,
		order:     order,
		index:     index,
		textEdits: make(map[int]string),
		appended:  make(map[int][]*etree.Element),
	}, nil
}

// Serialize writes the packet back to bytes. An untouched document
// serializes byte-identical to its input; edits replace only the
// content ranges they name.
func (d *Datasets) Serialize() ([]byte, error) {
	if len(d.textEdits) == 0 && len(d.appended) == 0 {
		return append([]byte(nil), d.raw...), nil
	}

	patches, err := d.buildPatches()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(d.raw)+256)
	pos := 0
	for _, p := range patches {
		if p.start < pos {
			return nil, fmt.Errorf("%w: conflicting edits at byte %d", ErrTreeSerialize, p.start)
		}
		out = append(out, d.raw[pos:p.start]...)
		out = append(out, p.repl...)
		pos = p.end
	}
	out = append(out, d.raw[pos:]...)
	return out, nil
}

type patch struct {
	start, end int
	repl       []byte
}

func (d *Datasets) buildPatches() ([]patch, error) {
	touched := make(map[int]bool, len(d.textEdits)+len(d.appended))
	for idx := range d.textEdits {
		touched[idx] = true
	}
	for idx := range d.appended {
		touched[idx] = true
	}
	idxs := make([]int, 0, len(touched))
	for idx := range touched {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)

	var patches []patch
	for _, idx := range idxs {
		s := d.spans[idx]
		el := d.order[idx]
		text, hasText := d.textEdits[idx]

		var frags strings.Builder
		for _, c := range d.appended[idx] {
			writeElement(&frags, c)
		}

		// A zero-width content range is either <tag/> or <tag></tag>;
		// the bytes before the range tell them apart.
		selfClosing := s.contentStart == s.contentEnd &&
			s.contentStart >= 2 && string(d.raw[s.contentStart-2:s.contentStart]) == "/>"

		if selfClosing {
			var b strings.Builder
			b.WriteString(">")
			if hasText {
				b.WriteString(escapeText(text))
			}
			b.WriteString(frags.String())
			b.WriteString("</")
			b.WriteString(el.FullTag())
			b.WriteString(">")
			patches = append(patches, patch{s.contentStart - 2, s.contentStart, []byte(b.String())})
			continue
		}
		if hasText {
			patches = append(patches, patch{s.contentStart, s.contentEnd, []byte(escapeText(text))})
		}
		if frags.Len() > 0 {
			patches = append(patches, patch{s.contentEnd, s.contentEnd, []byte(frags.String())})
		}
	}

	sort.Slice(patches, func(i, j int) bool {
		if patches[i].start != patches[j].start {
			return patches[i].start < patches[j].start
		}
		return patches[i].end < patches[j].end
	})
	return patches, nil
}

// Root exposes the root element, mainly for checkbox discovery and
// tests.
func (d *Datasets) Root() *etree.Element {
	return d.doc.Root()
}

// Get resolves a slash-separated field path to an element, or nil.
//
// Matching is by local tag name, ignoring namespace prefixes. The
// first segment may match anywhere in the tree; the remaining
// segments navigate strictly through children. This mirrors how XFA
// form paths omit the datasets/data wrapper elements.
func (d *Datasets) Get(path string) *etree.Element {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil
	}

	candidates := findByLocalTag(d.doc.Root(), parts[0])
	for _, part := range parts[1:] {
		var next []*etree.Element
		for _, n := range candidates {
			for _, c := range n.ChildElements() {
				if c.Tag == part {
					next = append(next, c)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		candidates = next
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

// SetText overwrites the text content of the leaf at path. It never
// materializes missing structure; a miss means the schema and the
// document disagree about the form shape.
func (d *Datasets) SetText(path, value string) error {
	el := d.Get(path)
	if el == nil {
		return fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	el.SetText(value)
	if idx, ok := d.index[el]; ok {
		d.textEdits[idx] = value
	}
	return nil
}

// Text returns the trimmed text at path, or "" when the path is
// missing or empty.
func (d *Datasets) Text(path string) string {
	el := d.Get(path)
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

// AppendSibling inserts a new element with the given tag and text as
// the last child of the node at parentPath. Existing children keep
// their order; repeated tags under one parent are how the format
// encodes list entries.
func (d *Datasets) AppendSibling(parentPath, tag, value string) error {
	parent := d.Get(parentPath)
	if parent == nil {
		return fmt.Errorf("%w: %s", ErrPathNotFound, parentPath)
	}
	child := parent.CreateElement(tag)
	child.SetText(value)
	if idx, ok := d.index[parent]; ok {
		d.appended[idx] = append(d.appended[idx], child)
	}
	return nil
}

// PathOf builds the field path of an element, skipping the container
// wrappers the form paths omit.
func PathOf(el *etree.Element) string {
	var parts []string
	for cur := el; cur != nil; cur = cur.Parent() {
		// The document wrapper element has an empty tag.
		if cur.Tag == "" || containerTags[cur.Tag] {
			continue
		}
		parts = append(parts, cur.Tag)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// findByLocalTag collects root and all descendants whose local tag
// matches, in document order.
func findByLocalTag(root *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if el.Tag == tag {
			out = append(out, el)
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

func elementsInOrder(root *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		out = append(out, el)
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// elementSpans records each element's content byte range by streaming
// the raw packet once. Tokens are contiguous, so the offset before an
// end tag is where the element's content stops.
func elementSpans(raw []byte) ([]span, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false

	var spans []span
	var stack []int
	prev := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cur := int(dec.InputOffset())
		switch tok.(type) {
		case xml.StartElement:
			spans = append(spans, span{contentStart: cur, contentEnd: -1})
			stack = append(stack, len(spans)-1)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("unbalanced end tag")
			}
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			spans[i].contentEnd = prev
		}
		prev = cur
	}
	if len(stack) != 0 {
		return nil, errors.New("unclosed element")
	}
	return spans, nil
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }

// writeElement renders an appended element and its subtree.
func writeElement(b *strings.Builder, el *etree.Element) {
	b.WriteString("<")
	b.WriteString(el.FullTag())
	for _, a := range el.Attr {
		b.WriteString(" ")
		b.WriteString(a.FullKey())
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteString(`"`)
	}
	text := el.Text()
	children := el.ChildElements()
	if text == "" && len(children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
	b.WriteString(escapeText(text))
	for _, c := range children {
		writeElement(b, c)
	}
	b.WriteString("</")
	b.WriteString(el.FullTag())
	b.WriteString(">")
}
