package graph

import (
	"fmt"
	"strings"
)

// TreeOptions controls page tree rendering
type TreeOptions struct {
	// Highlight marks nodes (for example the sources of an answer) in bold
	Highlight map[string]bool
	// MaxDepth limits the rendered levels below each root, 0 renders all
	MaxDepth int
}

// RenderMarkdown renders the page tree of a space as a nested markdown list.
// An empty spaceID renders the trees of all spaces.
func (h *Hierarchy) RenderMarkdown(spaceID string, opts TreeOptions) string {
	var b strings.Builder
	for _, rootID := range h.roots {
		if spaceID != "" && h.nodes[rootID].SpaceID != spaceID {
			continue
		}
		h.renderNode(&b, rootID, 0, opts, map[string]bool{})
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderSubtree renders the tree below rootID as a nested markdown list
func (h *Hierarchy) RenderSubtree(rootID string, opts TreeOptions) string {
	if _, ok := h.nodes[rootID]; !ok {
		return ""
	}
	var b strings.Builder
	h.renderNode(&b, rootID, 0, opts, map[string]bool{})
	return strings.TrimRight(b.String(), "\n")
}

func (h *Hierarchy) renderNode(b *strings.Builder, id string, level int, opts TreeOptions, visited map[string]bool) {
	if opts.MaxDepth > 0 && level > opts.MaxDepth {
		return
	}
	if visited[id] {
		return
	}
	visited[id] = true

	node := h.nodes[id]
	url := node.Metadata.String("url")
	if url == "" {
		url = "/wiki/pages/" + node.ID
	}

	indent := strings.Repeat("  ", level)
	if opts.Highlight[id] {
		fmt.Fprintf(b, "%s- **[%s](%s)**\n", indent, node.Title, url)
	} else {
		fmt.Fprintf(b, "%s- [%s](%s)\n", indent, node.Title, url)
	}

	for _, childID := range h.children[id] {
		h.renderNode(b, childID, level+1, opts, visited)
	}
}
