package graph

import (
	"sort"

	"github.com/siherrmann/wikigraph/model"
)

// Hierarchy is the parent/child forest of a set of nodes.
// Depths are memoized, the hierarchy must not be mutated after creation.
type Hierarchy struct {
	nodes    map[string]*model.DocumentNode
	children map[string][]string
	roots    []string
	dangling []string
	depths   map[string]int
}

// NewHierarchy builds the forest from the parent references of nodes.
// A node whose parent is not part of nodes is treated as a root and
// reported by Dangling.
func NewHierarchy(nodes []*model.DocumentNode) *Hierarchy {
	h := &Hierarchy{
		nodes:    make(map[string]*model.DocumentNode, len(nodes)),
		children: map[string][]string{},
		depths:   make(map[string]int, len(nodes)),
	}
	for _, node := range nodes {
		h.nodes[node.ID] = node
	}

	for _, node := range nodes {
		if node.IsRoot() {
			h.roots = append(h.roots, node.ID)
			continue
		}
		if _, ok := h.nodes[node.Parent()]; !ok {
			h.roots = append(h.roots, node.ID)
			h.dangling = append(h.dangling, node.ID)
			continue
		}
		h.children[node.Parent()] = append(h.children[node.Parent()], node.ID)
	}

	sort.Strings(h.roots)
	sort.Strings(h.dangling)
	for parent := range h.children {
		sort.Strings(h.children[parent])
	}

	return h
}

// Node returns the node with the given id
func (h *Hierarchy) Node(id string) (*model.DocumentNode, bool) {
	node, ok := h.nodes[id]
	return node, ok
}

// Len returns the number of nodes
func (h *Hierarchy) Len() int {
	return len(h.nodes)
}

// IDs returns all node ids in ascending order
func (h *Hierarchy) IDs() []string {
	ids := make([]string, 0, len(h.nodes))
	for id := range h.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Roots returns the ids of all roots including nodes with a dangling parent
func (h *Hierarchy) Roots() []string {
	return h.roots
}

// Dangling returns the ids of nodes whose parent does not exist
func (h *Hierarchy) Dangling() []string {
	return h.dangling
}

// Children returns the ids of the children of id in ascending order
func (h *Hierarchy) Children(id string) []string {
	return h.children[id]
}

// Siblings returns the number of other nodes sharing the parent of id.
// Roots have no siblings.
func (h *Hierarchy) Siblings(id string) int {
	node, ok := h.nodes[id]
	if !ok || node.IsRoot() {
		return 0
	}
	children, ok := h.children[node.Parent()]
	if !ok {
		return 0
	}
	return len(children) - 1
}

// Depth returns the distance of id to its root. It returns a
// *model.GraphIntegrityError if the parent walk revisits a node.
func (h *Hierarchy) Depth(id string) (int, error) {
	if depth, ok := h.depths[id]; ok {
		return depth, nil
	}

	var path []string
	onPath := map[string]bool{}
	current := id
	base := 0
	for {
		if depth, ok := h.depths[current]; ok {
			base = depth
			break
		}
		if onPath[current] {
			return 0, &model.GraphIntegrityError{
				Kind:   model.IntegrityCycle,
				NodeID: id,
				Path:   append(path, current),
			}
		}

		node, ok := h.nodes[current]
		if !ok {
			return 0, &model.GraphIntegrityError{Kind: model.IntegrityDangling, NodeID: current}
		}

		onPath[current] = true
		path = append(path, current)

		if node.IsRoot() {
			base = -1
			break
		}
		if _, ok := h.nodes[node.Parent()]; !ok {
			// Dangling parent, node counts as root
			base = -1
			break
		}
		current = node.Parent()
	}

	// path[len-1] is either a root (base -1) or the child of a memoized node
	for i := len(path) - 1; i >= 0; i-- {
		base++
		h.depths[path[i]] = base
	}

	return h.depths[id], nil
}

// Ancestors returns at most limit ancestors of id, nearest first.
// The walk stops at a root, a dangling parent or a revisited node.
func (h *Hierarchy) Ancestors(id string, limit int) []model.Breadcrumb {
	var chain []model.Breadcrumb
	seen := map[string]bool{id: true}

	node, ok := h.nodes[id]
	for ok && len(chain) < limit && !node.IsRoot() {
		parent, found := h.nodes[node.Parent()]
		if !found || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true

		depth, err := h.Depth(parent.ID)
		if err != nil {
			depth = parent.HierarchyDepth
		}
		chain = append(chain, model.Breadcrumb{NodeID: parent.ID, Title: parent.Title, Depth: depth})
		node = parent
	}

	return chain
}
