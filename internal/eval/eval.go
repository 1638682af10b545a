// Package eval walks a Tree of Questions bottom-up, substituting child
// answers into parent templates and invoking the answering capability
// through the shared answer cache.
package eval

import (
	"context"
	"fmt"
	"sync"

	"github.com/dusk-indust/toqcheck/internal/cache"
	"github.com/dusk-indust/toqcheck/internal/qa"
	"github.com/dusk-indust/toqcheck/internal/toq"
	"golang.org/x/sync/errgroup"
)

// Options configures one tree evaluation.
type Options struct {
	// Answerer resolves fully-instantiated questions. Required.
	Answerer qa.Answerer

	// Cache memoizes answers across nodes, plans, and runs. When nil the
	// evaluation owns a fresh MemCache.
	Cache cache.Cache

	// Context is an optional passage or hint forwarded to the answerer and
	// folded into every cache key.
	Context string

	// Workers bounds intra-tree parallelism. Values below 2 evaluate
	// sequentially; higher values evaluate independent nodes of the same
	// depth concurrently.
	Workers int
}

// Trace records, for every node, the question actually asked (after
// substitution) and the answer obtained.
type Trace struct {
	Rendered map[toq.NodeID]string
	Answers  map[toq.NodeID]qa.Answer
}

// Root returns the answer recorded for the tree's root node.
func (tr *Trace) Root(t *toq.Tree) qa.Answer {
	return tr.Answers[t.RootID]
}

// Evaluate answers every node of tree strictly after all of its children.
// For a fixed answerer and cache state, re-evaluating an identical
// instantiated question hits the cache without a new model call.
func Evaluate(ctx context.Context, tree *toq.Tree, opts Options) (*Trace, error) {
	if opts.Answerer == nil {
		return nil, fmt.Errorf("eval: answerer is required")
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	store := opts.Cache
	if store == nil {
		store = cache.NewMemCache()
	}

	children := tree.Children()
	waves := depthWaves(tree, children)

	tr := &Trace{
		Rendered: make(map[toq.NodeID]string, len(tree.Nodes)),
		Answers:  make(map[toq.NodeID]qa.Answer, len(tree.Nodes)),
	}
	var mu sync.Mutex

	evalNode := func(ctx context.Context, id toq.NodeID) error {
		values := make(map[toq.NodeID]string, len(children[id]))
		mu.Lock()
		for _, c := range children[id] {
			values[c] = tr.Answers[c].Text
		}
		mu.Unlock()

		question, err := Render(tree.Nodes[id].Text, values)
		if err != nil {
			return err
		}

		ans, err := store.GetOrCompute(ctx, cache.Key{Question: question, Context: opts.Context},
			func(ctx context.Context) (qa.Answer, error) {
				return opts.Answerer.Answer(ctx, question, opts.Context)
			})
		if err != nil {
			return fmt.Errorf("eval: answer node %d: %w", id, err)
		}

		mu.Lock()
		tr.Rendered[id] = question
		tr.Answers[id] = ans
		mu.Unlock()
		return nil
	}

	// Deepest wave first: every child is strictly deeper than its parent, so
	// by the time a wave runs all answers it substitutes are recorded.
	for d := len(waves) - 1; d >= 0; d-- {
		if opts.Workers > 1 && len(waves[d]) > 1 {
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(opts.Workers)
			for _, id := range waves[d] {
				g.Go(func() error { return evalNode(gctx, id) })
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
			continue
		}
		for _, id := range waves[d] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := evalNode(ctx, id); err != nil {
				return nil, err
			}
		}
	}

	return tr, nil
}

// depthWaves groups node ids by depth via breadth-first traversal from the
// root: waves[0] is the root, waves[d] the nodes d edges below it. Reversing
// the wave order yields a bottom-up topological order.
func depthWaves(tree *toq.Tree, children map[toq.NodeID][]toq.NodeID) [][]toq.NodeID {
	var waves [][]toq.NodeID
	current := []toq.NodeID{tree.RootID}
	for len(current) > 0 {
		waves = append(waves, current)
		var next []toq.NodeID
		for _, id := range current {
			next = append(next, children[id]...)
		}
		current = next
	}
	return waves
}
