package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/toqcheck/internal/plan"
	"github.com/dusk-indust/toqcheck/internal/toq"
)

// TreeMermaid produces a Mermaid graph TD diagram of a question tree.
// Child-to-parent edges become arrows pointing at the consumer.
func TreeMermaid(tree *toq.Tree) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range sortedIDs(tree) {
		sb.WriteString(fmt.Sprintf("  N%d[\"%s\"]\n", id, nodeLabel(tree.Nodes[id])))
	}
	for _, id := range sortedIDs(tree) {
		node := tree.Nodes[id]
		if node.Parent != nil {
			sb.WriteString(fmt.Sprintf("  N%d --> N%d\n", id, *node.Parent))
		}
	}
	return sb.String()
}

// PlanMermaid renders the tree under a collapse plan: each merge component
// becomes a subgraph, and cut edges cross between them as dashed arrows.
func PlanMermaid(tree *toq.Tree, p plan.Plan) string {
	comps := plan.Components(tree, p)
	roots := make([]toq.NodeID, 0, len(comps))
	for root := range comps {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	cut := make(map[toq.NodeID]bool, len(p.CutEdges))
	for _, e := range p.CutEdges {
		cut[e] = true
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, root := range roots {
		members := comps[root]
		sb.WriteString(fmt.Sprintf("  subgraph C%d[\"component %d\"]\n", root, root))
		for _, id := range members {
			sb.WriteString(fmt.Sprintf("    N%d[\"%s\"]\n", id, nodeLabel(tree.Nodes[id])))
		}
		sb.WriteString("  end\n")
	}

	// Merge edges stay solid, cut edges cross component borders dashed.
	for _, id := range sortedIDs(tree) {
		node := tree.Nodes[id]
		if node.Parent == nil {
			continue
		}
		if cut[id] {
			sb.WriteString(fmt.Sprintf("  N%d -.-> N%d\n", id, *node.Parent))
		} else {
			sb.WriteString(fmt.Sprintf("  N%d --> N%d\n", id, *node.Parent))
		}
	}
	return sb.String()
}

// nodeLabel truncates long question text and escapes quotes for Mermaid.
func nodeLabel(node toq.Node) string {
	text := strings.ReplaceAll(node.Text, `"`, "'")
	if len(text) > 40 {
		text = text[:37] + "..."
	}
	return fmt.Sprintf("%d: %s", node.ID, text)
}

func sortedIDs(tree *toq.Tree) []toq.NodeID {
	ids := make([]toq.NodeID, 0, len(tree.Nodes))
	for id := range tree.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
