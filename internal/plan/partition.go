package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/toqcheck/internal/toq"
)

// ComponentRoots returns the component roots induced by a plan: the tree
// root plus every cut child, sorted ascending.
func ComponentRoots(tree *toq.Tree, p Plan) []toq.NodeID {
	roots := append([]toq.NodeID{tree.RootID}, p.CutEdges...)
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// Components partitions the tree's nodes into maximal sets joined by merge
// edges, keyed by component root. Each member list is sorted ascending and
// found by iterative breadth-first search over the non-cut child edges.
func Components(tree *toq.Tree, p Plan) map[toq.NodeID][]toq.NodeID {
	children := tree.Children()
	cut := make(map[toq.NodeID]bool, len(p.CutEdges))
	for _, e := range p.CutEdges {
		cut[e] = true
	}

	comps := make(map[toq.NodeID][]toq.NodeID)
	for _, root := range ComponentRoots(tree, p) {
		var members []toq.NodeID
		queue := []toq.NodeID{root}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			members = append(members, u)
			for _, c := range children[u] {
				if !cut[c] {
					queue = append(queue, c)
				}
			}
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		comps[root] = members
	}
	return comps
}

// ComponentOf maps every node id to the root of its component.
func ComponentOf(tree *toq.Tree, p Plan) map[toq.NodeID]toq.NodeID {
	assign := make(map[toq.NodeID]toq.NodeID, len(tree.Nodes))
	for root, members := range Components(tree, p) {
		for _, m := range members {
			assign[m] = root
		}
	}
	return assign
}

// PartitionKey renders the component partition in canonical form, e.g.
// "1:1|3:2,3". Two plans with equal keys induce identical behavior.
func PartitionKey(tree *toq.Tree, p Plan) string {
	comps := Components(tree, p)
	roots := make([]toq.NodeID, 0, len(comps))
	for r := range comps {
		roots = append(roots, r)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	parts := make([]string, 0, len(roots))
	for _, r := range roots {
		members := make([]string, len(comps[r]))
		for i, m := range comps[r] {
			members[i] = fmt.Sprintf("%d", m)
		}
		parts = append(parts, fmt.Sprintf("%d:%s", r, strings.Join(members, ",")))
	}
	return strings.Join(parts, "|")
}
