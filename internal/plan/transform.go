package plan

import (
	"fmt"
	"sort"

	"github.com/dusk-indust/toqcheck/internal/toq"
)

// Collapsed is the reduced tree obtained by contracting each of a plan's
// components to a single node.
type Collapsed struct {
	Tree    *toq.Tree
	Plan    Plan
	Roots   []toq.NodeID // component roots, sorted
	Removed []toq.NodeID // nodes folded into a multi-node component, sorted
}

// ExtractOpen builds the OpenToQ for the component rooted at root under p:
// the component's nodes with the root's parent pointer dropped, plus the
// external inputs (cut children of component members, whose answers arrive
// from outside the fragment).
func ExtractOpen(tree *toq.Tree, p Plan, root toq.NodeID) (toq.OpenToQ, error) {
	if err := p.Validate(tree); err != nil {
		return toq.OpenToQ{}, err
	}
	comps := Components(tree, p)
	members, ok := comps[root]
	if !ok {
		return toq.OpenToQ{}, fmt.Errorf("plan %s: node %d is not a component root", p.Key(), root)
	}

	inSet := make(map[toq.NodeID]bool, len(members))
	for _, m := range members {
		inSet[m] = true
	}

	fragment := &toq.Tree{
		Nodes:  make(map[toq.NodeID]toq.Node, len(members)),
		RootID: root,
	}
	var inputs []toq.NodeID
	children := tree.Children()
	for _, m := range members {
		n := tree.Nodes[m]
		if m == root {
			n.Parent = nil
		}
		fragment.Nodes[m] = n
		for _, c := range children[m] {
			if !inSet[c] {
				inputs = append(inputs, c)
			}
		}
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i] < inputs[j] })

	return toq.OpenToQ{Tree: fragment, RootID: root, Inputs: inputs}, nil
}

// Apply contracts tree per p into a reduced tree with one node per
// component. Multi-node components take their text from collapsed (keyed by
// component root); size-one components keep the original node text. Parent
// relations are induced from the inter-component edges of the original tree.
func Apply(tree *toq.Tree, p Plan, collapsed map[toq.NodeID]string) (*Collapsed, error) {
	if err := p.Validate(tree); err != nil {
		return nil, err
	}

	comps := Components(tree, p)
	compOf := make(map[toq.NodeID]toq.NodeID, len(tree.Nodes))
	for root, members := range comps {
		for _, m := range members {
			compOf[m] = root
		}
	}

	reduced := &toq.Tree{
		Nodes:  make(map[toq.NodeID]toq.Node, len(comps)),
		RootID: tree.RootID,
	}
	var roots, removed []toq.NodeID

	for root, members := range comps {
		roots = append(roots, root)

		text := tree.Nodes[root].Text
		if len(members) > 1 {
			var ok bool
			text, ok = collapsed[root]
			if !ok {
				return nil, fmt.Errorf("plan %s: missing collapsed question for component root %d", p.Key(), root)
			}
			for _, m := range members {
				if m != root {
					removed = append(removed, m)
				}
			}
		}

		node := toq.Node{ID: root, Text: text}
		if root != tree.RootID {
			parent := compOf[*tree.Nodes[root].Parent]
			node.Parent = &parent
		}
		reduced.Nodes[root] = node
	}

	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

	if err := reduced.Validate(); err != nil {
		return nil, fmt.Errorf("plan %s: reduced tree: %w", p.Key(), err)
	}

	return &Collapsed{Tree: reduced, Plan: p, Roots: roots, Removed: removed}, nil
}
