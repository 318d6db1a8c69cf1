package domain

import "sort"

// MaxCategoryDepth is the intended maximum nesting of the taxonomy. It is
// reported as a warning, never enforced.
const MaxCategoryDepth = 5

// CategoryIndex holds child->parent and parent->children adjacency for a set
// of categories. Closures are computed with explicit worklists so depth is
// never bounded by the call stack.
type CategoryIndex struct {
	parent   map[int64]*int64
	children map[int64][]int64
}

// NewCategoryIndex builds adjacency maps for categories.
func NewCategoryIndex(categories []Category) CategoryIndex {
	idx := CategoryIndex{
		parent:   make(map[int64]*int64, len(categories)),
		children: make(map[int64][]int64),
	}
	for _, c := range categories {
		idx.parent[c.ID] = c.ParentID
		if c.ParentID != nil {
			idx.children[*c.ParentID] = append(idx.children[*c.ParentID], c.ID)
		}
	}
	for k := range idx.children {
		sort.Slice(idx.children[k], func(i, j int) bool { return idx.children[k][i] < idx.children[k][j] })
	}
	return idx
}

// Has reports whether id is a known category.
func (idx CategoryIndex) Has(id int64) bool {
	_, ok := idx.parent[id]
	return ok
}

// Children returns the direct children of id in ascending order.
func (idx CategoryIndex) Children(id int64) []int64 {
	return append([]int64(nil), idx.children[id]...)
}

// Ancestors returns id followed by each ancestor up to the root. The second
// return is false when id is unknown. A parent cycle stops the walk at the
// first repeated node.
func (idx CategoryIndex) Ancestors(id int64) ([]int64, bool) {
	if !idx.Has(id) {
		return nil, false
	}
	chain := []int64{id}
	seen := map[int64]struct{}{id: {}}
	current := id
	for {
		p := idx.parent[current]
		if p == nil {
			break
		}
		if _, loop := seen[*p]; loop {
			break
		}
		if !idx.Has(*p) {
			break
		}
		seen[*p] = struct{}{}
		chain = append(chain, *p)
		current = *p
	}
	return chain, true
}

// Descendants returns every input id that exists plus all transitive children,
// sorted ascending. Empty input yields an empty result.
func (idx CategoryIndex) Descendants(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{})
	var queue []int64
	for _, id := range ids {
		if !idx.Has(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range idx.children[current] {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Depth returns the number of categories in id's ancestor chain (a root has
// depth 1), or 0 when id is unknown.
func (idx CategoryIndex) Depth(id int64) int {
	chain, ok := idx.Ancestors(id)
	if !ok {
		return 0
	}
	return len(chain)
}

// WouldCycle reports whether making newParent the parent of id would create a
// cycle, i.e. newParent is id itself or one of its descendants.
func (idx CategoryIndex) WouldCycle(id, newParent int64) bool {
	for _, d := range idx.Descendants([]int64{id}) {
		if d == newParent {
			return true
		}
	}
	return false
}
