package toq

import (
	"errors"
	"fmt"
	"sort"
)

// NodeID uniquely identifies a question node within a tree.
type NodeID int

// Node is a single question in a Tree of Questions. Text may contain
// placeholders of the form [A<child-id>] that are filled with the answers of
// the node's children during evaluation.
type Node struct {
	ID     NodeID  `json:"id"`
	Text   string  `json:"text"`
	Parent *NodeID `json:"parent"`
}

// Root reports whether the node has no parent.
func (n Node) Root() bool {
	return n.Parent == nil
}

// RootNode constructs a parentless node.
func RootNode(id NodeID, text string) Node {
	return Node{ID: id, Text: text}
}

// ChildNode constructs a node attached to parent.
func ChildNode(id NodeID, text string, parent NodeID) Node {
	p := parent
	return Node{ID: id, Text: text, Parent: &p}
}

// Tree is a rooted tree of question nodes keyed by id. Trees are constructed
// once (by hand, a loader, or a decomposer) and treated as read-only
// afterwards.
type Tree struct {
	Nodes  map[NodeID]Node
	RootID NodeID
}

// ErrInvalidTree is wrapped by every error returned from Validate.
var ErrInvalidTree = errors.New("invalid tree")

// New builds a Tree from a node list, inferring the root from the single
// parentless node. It does not validate; call Validate before evaluating.
func New(nodes ...Node) *Tree {
	t := &Tree{Nodes: make(map[NodeID]Node, len(nodes))}
	for _, n := range nodes {
		t.Nodes[n.ID] = n
		if n.Parent == nil {
			t.RootID = n.ID
		}
	}
	return t
}

// Children returns the adjacency map from node id to its child ids. Child
// lists are sorted for deterministic traversal order.
func (t *Tree) Children() map[NodeID][]NodeID {
	ch := make(map[NodeID][]NodeID, len(t.Nodes))
	for id := range t.Nodes {
		ch[id] = nil
	}
	for id, n := range t.Nodes {
		if n.Parent == nil {
			continue
		}
		// Guarded so casual use before Validate cannot grow phantom keys.
		if _, ok := t.Nodes[*n.Parent]; ok {
			ch[*n.Parent] = append(ch[*n.Parent], id)
		}
	}
	for id := range ch {
		sort.Slice(ch[id], func(i, j int) bool { return ch[id][i] < ch[id][j] })
	}
	return ch
}

// Leaves returns the ids of all nodes without children, sorted.
func (t *Tree) Leaves() []NodeID {
	ch := t.Children()
	var leaves []NodeID
	for id := range t.Nodes {
		if len(ch[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i] < leaves[j] })
	return leaves
}

// Validate checks tree well-formedness: the root exists and is the unique
// parentless node, every parent pointer resolves, the parent relation is
// acyclic, every node is reachable from the root, and every [A<k>]
// placeholder in a node's text references a direct child of that node.
// All returned errors wrap ErrInvalidTree.
func (t *Tree) Validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: tree has no nodes", ErrInvalidTree)
	}
	if _, ok := t.Nodes[t.RootID]; !ok {
		return fmt.Errorf("%w: root id %d not in nodes", ErrInvalidTree, t.RootID)
	}

	var roots []NodeID
	for id, n := range t.Nodes {
		if n.ID != id {
			return fmt.Errorf("%w: node key %d != node id %d", ErrInvalidTree, id, n.ID)
		}
		if n.Parent == nil {
			roots = append(roots, id)
			continue
		}
		if *n.Parent == id {
			return fmt.Errorf("%w: node %d cannot be its own parent", ErrInvalidTree, id)
		}
		if _, ok := t.Nodes[*n.Parent]; !ok {
			return fmt.Errorf("%w: node %d has missing parent %d", ErrInvalidTree, id, *n.Parent)
		}
	}

	if len(roots) != 1 {
		return fmt.Errorf("%w: expected exactly 1 root, found %d", ErrInvalidTree, len(roots))
	}
	if roots[0] != t.RootID {
		return fmt.Errorf("%w: root id %d != the unique parentless node %d", ErrInvalidTree, t.RootID, roots[0])
	}

	// Walk down from the root. The parent relation cannot produce a cycle if
	// exactly one root exists and every parent resolves, but a disconnected
	// 2-cycle (a<->b) is still possible, so reachability is the real check.
	ch := t.Children()
	visited := make(map[NodeID]bool, len(t.Nodes))
	queue := []NodeID{t.RootID}
	visited[t.RootID] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range ch[u] {
			if visited[v] {
				return fmt.Errorf("%w: cycle detected at edge %d -> %d", ErrInvalidTree, u, v)
			}
			visited[v] = true
			queue = append(queue, v)
		}
	}
	if len(visited) != len(t.Nodes) {
		var orphans []NodeID
		for id := range t.Nodes {
			if !visited[id] {
				orphans = append(orphans, id)
			}
		}
		sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
		return fmt.Errorf("%w: nodes unreachable from root %d: %v", ErrInvalidTree, t.RootID, orphans)
	}

	// Placeholder discipline: [A<k>] in a node's text must name a child of
	// that node. Anything else would be unanswerable at evaluation time.
	childSet := make(map[NodeID]map[NodeID]bool, len(ch))
	for p, kids := range ch {
		childSet[p] = make(map[NodeID]bool, len(kids))
		for _, k := range kids {
			childSet[p][k] = true
		}
	}
	for id, n := range t.Nodes {
		for _, ref := range Refs(n.Text) {
			if !childSet[id][ref] {
				return fmt.Errorf("%w: node %d references [A%d] which is not one of its children", ErrInvalidTree, id, ref)
			}
		}
	}

	return nil
}

// OpenToQ is a connected fragment of a Tree plus the external inputs the
// fragment depends on: placeholder ids whose defining node lies outside the
// fragment because the connecting edge was cut. Instances are transient,
// built per component per collapse plan and handed to a Collapser.
type OpenToQ struct {
	Tree   *Tree
	RootID NodeID
	Inputs []NodeID // sorted ascending
}

// Closed reports whether the fragment has no external inputs.
func (o OpenToQ) Closed() bool {
	return len(o.Inputs) == 0
}
