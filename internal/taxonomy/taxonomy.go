// Package taxonomy turns the flat product category table into the shapes
// the rest of the service needs: a nested tree for the pickers, breadcrumb
// paths, the leaf categories beneath a selection, and the cascade set for
// activation toggles. All traversals share one children index and guard
// against cycles by tracking visited ids.
package taxonomy

import (
	"sort"
	"strings"

	"nutricompare/internal/models"
)

// PathSeparator joins category names in a breadcrumb.
const PathSeparator = " > "

// ChildrenIndex maps a parent id to its children, ordered case-insensitively
// by name. Roots are stored under the empty key.
type ChildrenIndex map[string][]models.Category

// BuildChildrenIndex groups categories by parent id and sorts every group by
// name, case-insensitively. Equal names keep their input order.
func BuildChildrenIndex(categories []models.Category) ChildrenIndex {
	idx := make(ChildrenIndex)
	for _, c := range categories {
		idx[c.Parent()] = append(idx[c.Parent()], c)
	}
	for pid := range idx {
		group := idx[pid]
		sort.SliceStable(group, func(i, j int) bool {
			return strings.ToLower(group[i].Name) < strings.ToLower(group[j].Name)
		})
	}
	return idx
}

// Roots returns the root categories in display order.
func (idx ChildrenIndex) Roots() []models.Category {
	return idx[""]
}

// Children returns the direct children of id in display order.
func (idx ChildrenIndex) Children(id string) []models.Category {
	return idx[id]
}

// HasChildren reports whether id has at least one child.
func (idx ChildrenIndex) HasChildren(id string) bool {
	return len(idx[id]) > 0
}

// byID indexes categories by id. Later rows win on duplicate ids.
func byID(categories []models.Category) map[string]models.Category {
	m := make(map[string]models.Category, len(categories))
	for _, c := range categories {
		m[c.ID] = c
	}
	return m
}

// BuildTree converts a flat category set into nested nodes. It does not
// filter on IsActive; callers pass FilterActive(categories) for the public
// picker and the full set for administration.
func BuildTree(categories []models.Category) []models.CategoryNode {
	idx := BuildChildrenIndex(categories)
	return buildNodes(idx, idx.Roots(), make(map[string]bool))
}

// buildNodes recursively attaches children. The visited set only matters
// for malformed input with duplicate ids; a parent-pointer cycle is never
// reachable from a root.
func buildNodes(idx ChildrenIndex, group []models.Category, visited map[string]bool) []models.CategoryNode {
	nodes := make([]models.CategoryNode, 0, len(group))
	for _, c := range group {
		node := models.CategoryNode{
			ID:       c.ID,
			Name:     c.Name,
			IsActive: c.IsActive,
			Children: []models.CategoryNode{},
		}
		if !visited[c.ID] {
			visited[c.ID] = true
			node.Children = buildNodes(idx, idx.Children(c.ID), visited)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// FilterActive returns only the active categories, preserving order.
func FilterActive(categories []models.Category) []models.Category {
	active := make([]models.Category, 0, len(categories))
	for _, c := range categories {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active
}

// FindPath returns the breadcrumb from the root down to targetID, e.g.
// "Food > Dairy > Milk". The second result is false when targetID is
// unknown. On a cycle the walk stops at the first revisited id and returns
// the partial chain.
func FindPath(categories []models.Category, targetID string) (string, bool) {
	cats := byID(categories)
	if _, ok := cats[targetID]; !ok {
		return "", false
	}

	var chain []string
	seen := make(map[string]bool)
	cur := targetID
	for cur != "" && !seen[cur] {
		c, ok := cats[cur]
		if !ok {
			break
		}
		seen[cur] = true
		chain = append(chain, c.Name)
		cur = c.Parent()
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return strings.Join(chain, PathSeparator), true
}

// LeafDescendants returns, in breadth-first order, every leaf category at or
// beneath rootID. A childless root yields []string{rootID}; an unknown id
// yields nil.
func LeafDescendants(categories []models.Category, rootID string) []string {
	if _, ok := byID(categories)[rootID]; !ok {
		return nil
	}
	return leavesFrom(BuildChildrenIndex(categories), rootID)
}

func leavesFrom(idx ChildrenIndex, rootID string) []string {
	var leaves []string
	visited := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		kids := idx.Children(id)
		if len(kids) == 0 {
			leaves = append(leaves, id)
			continue
		}
		for _, k := range kids {
			if visited[k.ID] {
				continue
			}
			visited[k.ID] = true
			queue = append(queue, k.ID)
		}
	}
	return leaves
}

// Descendants returns every id strictly beneath id, breadth-first.
func Descendants(categories []models.Category, id string) []string {
	idx := BuildChildrenIndex(categories)
	var out []string
	visited := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, k := range idx.Children(cur) {
			if visited[k.ID] {
				continue
			}
			visited[k.ID] = true
			out = append(out, k.ID)
			queue = append(queue, k.ID)
		}
	}
	return out
}

// DisplayName is the label shown for a selection: the name the client
// sent, else the resolved breadcrumb, else the raw id.
func DisplayName(categories []models.Category, sel models.SelectedCategory) string {
	if sel.Name != "" {
		return sel.Name
	}
	if path, ok := FindPath(categories, sel.ID); ok && path != "" {
		return path
	}
	return sel.ID
}

// LeafSet is the union of the leaves of several selections. IDs keeps the
// order in which leaves were first reached; Origin maps each leaf to the
// display name of the selection that expanded to it (last selection wins).
type LeafSet struct {
	IDs    []string
	Origin map[string]string
}

// ExpandSelections expands every selection to its leaves. A selection whose
// id is not in the taxonomy is kept as-is so the upstream API still gets
// asked about it.
func ExpandSelections(categories []models.Category, selected []models.SelectedCategory) LeafSet {
	idx := BuildChildrenIndex(categories)
	known := byID(categories)

	set := LeafSet{Origin: make(map[string]string)}
	for _, sel := range selected {
		var leaves []string
		if _, ok := known[sel.ID]; ok {
			leaves = leavesFrom(idx, sel.ID)
		}
		if len(leaves) == 0 {
			leaves = []string{sel.ID}
		}

		origin := DisplayName(categories, sel)
		for _, id := range leaves {
			if _, seen := set.Origin[id]; !seen {
				set.IDs = append(set.IDs, id)
			}
			set.Origin[id] = origin
		}
	}
	return set
}

// MergeSelections returns existing followed by every suggestion whose id is
// not already present. Empty ids are dropped from the suggestions.
func MergeSelections(existing, suggestions []models.SelectedCategory) []models.SelectedCategory {
	seen := make(map[string]bool, len(existing))
	merged := make([]models.SelectedCategory, 0, len(existing)+len(suggestions))
	for _, c := range existing {
		seen[c.ID] = true
		merged = append(merged, c)
	}
	for _, s := range suggestions {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		merged = append(merged, s)
	}
	return merged
}
