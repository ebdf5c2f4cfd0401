package xfa

import (
	"strings"

	"github.com/beevik/etree"
)

// DiscoverCheckboxPaths scans the tree for leaves whose value is
// exactly "On" or "Off" and returns their field paths in document
// order, deduplicated. Blank XFA forms pre-seed checkbox leaves with
// one of the two sentinels, which makes the convention discoverable
// without schema help.
func DiscoverCheckboxPaths(d *Datasets) []string {
	seen := make(map[string]bool)
	var paths []string

	for _, el := range leaves(d.Root()) {
		text := strings.TrimSpace(el.Text())
		if text != "On" && text != "Off" {
			continue
		}
		p := PathOf(el)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

// LeafPaths returns the field paths of all value leaves in document
// order, deduplicated. Childless grouping nodes are not value leaves
// and are skipped.
func LeafPaths(d *Datasets) []string {
	seen := make(map[string]bool)
	var paths []string

	for _, el := range leaves(d.Root()) {
		if isDataGroup(el) {
			continue
		}
		p := PathOf(el)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

func isDataGroup(el *etree.Element) bool {
	for _, a := range el.Attr {
		if a.Key == "dataNode" && a.Value == "dataGroup" {
			return true
		}
	}
	return false
}

// leaves returns all elements without child elements, in document order.
func leaves(root *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		children := el.ChildElements()
		if len(children) == 0 {
			out = append(out, el)
			return
		}
		for _, c := range children {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}
