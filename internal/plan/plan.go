// Package plan enumerates the structural variants of a Tree of Questions.
// Every parent-child edge is either "cut" (kept as an evaluation boundary)
// or "merged" (its endpoints join one flattened question); a Plan is one
// full assignment over all edges. An edge is identified by its child node id.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/toqcheck/internal/toq"
)

// Plan assigns cut/merge to every edge of a tree: CutEdges holds the child
// ids of the cut edges, sorted ascending; every other edge merges. The empty
// plan is the all-merge variant (one flattened root question), the full set
// is the all-cut variant (the original tree's evaluation, unchanged).
type Plan struct {
	CutEdges []toq.NodeID
}

// NewPlan builds a Plan with a sorted, deduplicated cut set.
func NewPlan(cutEdges ...toq.NodeID) Plan {
	set := make(map[toq.NodeID]bool, len(cutEdges))
	for _, e := range cutEdges {
		set[e] = true
	}
	out := make([]toq.NodeID, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Plan{CutEdges: out}
}

// Cut reports whether the edge above node id is cut.
func (p Plan) Cut(id toq.NodeID) bool {
	for _, e := range p.CutEdges {
		if e == id {
			return true
		}
	}
	return false
}

// Key is a stable identifier for the plan, e.g. "cut{}" or "cut{1,3}".
func (p Plan) Key() string {
	parts := make([]string, len(p.CutEdges))
	for i, e := range p.CutEdges {
		parts[i] = fmt.Sprintf("%d", e)
	}
	return "cut{" + strings.Join(parts, ",") + "}"
}

func (p Plan) String() string {
	return p.Key()
}

// Validate checks the plan against a tree: cut edges must name existing
// non-root nodes.
func (p Plan) Validate(tree *toq.Tree) error {
	for _, e := range p.CutEdges {
		if e == tree.RootID {
			return fmt.Errorf("plan %s: root id %d cannot be a cut edge", p.Key(), e)
		}
		if _, ok := tree.Nodes[e]; !ok {
			return fmt.Errorf("plan %s: cut edge %d: node not in tree", p.Key(), e)
		}
	}
	return nil
}

// Options configures enumeration.
type Options struct {
	// MaxPlans truncates the enumeration after this many plans. Zero means
	// unlimited; trees with more than MaxExhaustiveEdges edges then refuse
	// to enumerate.
	MaxPlans int

	// Filter, when non-nil, keeps only plans for which it returns true.
	Filter func(Plan) bool

	// DedupePartitions drops plans whose component partition was already
	// yielded by an earlier plan. The partition, not the raw edge vector,
	// determines behavior.
	DedupePartitions bool
}

// MaxExhaustiveEdges bounds unlimited enumeration: beyond this many edges
// the 2^E power set is refused unless MaxPlans caps the output.
const MaxExhaustiveEdges = 20

// Enumerate yields the collapse plans of tree in deterministic order:
// ascending by number of cut edges, ties broken lexicographically by the cut
// set. With no cap or filter this is the full power set of 2^E plans, the
// all-merge plan first and the all-cut plan last. A single-node tree yields
// exactly one trivial plan.
func Enumerate(tree *toq.Tree, opts Options) ([]Plan, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}

	edges := make([]toq.NodeID, 0, len(tree.Nodes)-1)
	for id := range tree.Nodes {
		if id != tree.RootID {
			edges = append(edges, id)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i] < edges[j] })

	if opts.MaxPlans <= 0 && len(edges) > MaxExhaustiveEdges {
		return nil, fmt.Errorf("plan: %d edges exceed the exhaustive limit of %d; set MaxPlans", len(edges), MaxExhaustiveEdges)
	}

	var (
		plans []Plan
		seen  map[string]bool
	)
	if opts.DedupePartitions {
		seen = make(map[string]bool)
	}

	emit := func(p Plan) bool {
		if opts.Filter != nil && !opts.Filter(p) {
			return true
		}
		if seen != nil {
			key := PartitionKey(tree, p)
			if seen[key] {
				return true
			}
			seen[key] = true
		}
		plans = append(plans, p)
		return opts.MaxPlans <= 0 || len(plans) < opts.MaxPlans
	}

	for size := 0; size <= len(edges); size++ {
		if !combinations(edges, size, emit) {
			break
		}
	}
	return plans, nil
}

// combinations visits the size-k subsets of edges in lexicographic order,
// calling emit for each. It returns false as soon as emit does.
func combinations(edges []toq.NodeID, k int, emit func(Plan) bool) bool {
	if k == 0 {
		return emit(Plan{CutEdges: nil})
	}

	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		cut := make([]toq.NodeID, k)
		for i, j := range idx {
			cut[i] = edges[j]
		}
		if !emit(Plan{CutEdges: cut}) {
			return false
		}

		// Advance to the next combination.
		i := k - 1
		for i >= 0 && idx[i] == len(edges)-k+i {
			i--
		}
		if i < 0 {
			return true
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
