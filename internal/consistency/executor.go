package consistency

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dusk-indust/toqcheck/internal/eval"
	"github.com/dusk-indust/toqcheck/internal/plan"
	"github.com/dusk-indust/toqcheck/internal/toq"
	"golang.org/x/sync/errgroup"
)

// collapseMemo caches collapsed questions per component signature so plans
// that share a component reuse one collapser call.
type collapseMemo struct {
	mu      sync.Mutex
	entries map[string]string
}

func newCollapseMemo() *collapseMemo {
	return &collapseMemo{entries: make(map[string]string)}
}

// componentSig identifies a component independently of the plan that
// produced it: the fragment root, its members, and its external inputs.
func componentSig(open toq.OpenToQ) string {
	members := make([]toq.NodeID, 0, len(open.Tree.Nodes))
	for id := range open.Tree.Nodes {
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	ids := make([]string, len(members))
	for i, id := range members {
		ids[i] = fmt.Sprintf("%d", id)
	}
	inputs := make([]string, len(open.Inputs))
	for i, in := range open.Inputs {
		inputs[i] = fmt.Sprintf("%d", in)
	}
	return fmt.Sprintf("root=%d members=%s inputs=%s", open.RootID, strings.Join(ids, ","), strings.Join(inputs, ","))
}

// runPlans executes every plan, concurrently when Options.PlanWorkers allows
// it. In strict mode the first failure cancels the remaining plans and is
// returned; otherwise failures become errored records and all collected
// results are returned.
func runPlans(ctx context.Context, tree *toq.Tree, plans []plan.Plan, opts Options) ([]RunRecord, error) {
	records := make([]RunRecord, len(plans))
	memo := newCollapseMemo()

	emit := func(ev Event) {
		if opts.OnProgress != nil {
			opts.OnProgress(ev)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	workers := opts.PlanWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, p := range plans {
		emit(Event{PlanKey: p.Key(), Status: EventPending})

		g.Go(func() error {
			emit(Event{PlanKey: p.Key(), Status: EventWorking})

			rec := executePlan(gctx, tree, p, opts, memo)
			records[i] = rec

			if rec.Status == StatusErrored {
				emit(Event{PlanKey: p.Key(), Status: EventFailed, Message: rec.Err})
				if opts.Strict {
					// Cancels the derived context so sibling plans abandon
					// their in-flight capability calls.
					return fmt.Errorf("consistency: plan %s: %s", p.Key(), rec.Err)
				}
				return nil
			}

			emit(Event{PlanKey: p.Key(), Status: EventComplete})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// executePlan contracts the tree per p, collapses every multi-node component
// through the collapsing capability, evaluates the reduced tree with the
// shared cache, and records the root answer. All failures are scoped to the
// plan and reported through the record's errored status.
func executePlan(ctx context.Context, tree *toq.Tree, p plan.Plan, opts Options, memo *collapseMemo) RunRecord {
	rec := RunRecord{
		Plan:         p,
		PlanKey:      p.Key(),
		PartitionKey: plan.PartitionKey(tree, p),
	}
	fail := func(err error) RunRecord {
		rec.Status = StatusErrored
		rec.Err = err.Error()
		return rec
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	comps := plan.Components(tree, p)
	collapsed := make(map[toq.NodeID]string)

	for root, members := range comps {
		if len(members) < 2 {
			continue // singleton components pass through unchanged
		}

		open, err := plan.ExtractOpen(tree, p, root)
		if err != nil {
			return fail(err)
		}

		text, err := collapseComponent(ctx, open, opts, memo)
		if err != nil {
			return fail(err)
		}

		// Contract: the collapsed question may reference only the declared
		// external inputs.
		if bad := undeclaredRefs(text, open.Inputs); len(bad) > 0 {
			return fail(&CollapseContractError{
				PlanKey: p.Key(),
				Root:    root,
				Refs:    bad,
				Text:    text,
			})
		}

		collapsed[root] = text
	}

	ct, err := plan.Apply(tree, p, collapsed)
	if err != nil {
		return fail(err)
	}
	rec.Removed = ct.Removed

	trace, err := eval.Evaluate(ctx, ct.Tree, eval.Options{
		Answerer: opts.Answerer,
		Cache:    opts.Cache,
		Context:  opts.Context,
		Workers:  opts.EvalWorkers,
	})
	if err != nil {
		return fail(err)
	}

	rec.RootAnswer = trace.Root(ct.Tree)
	return rec
}

// collapseComponent invokes the collapser for a component, memoized by the
// component's signature.
func collapseComponent(ctx context.Context, open toq.OpenToQ, opts Options, memo *collapseMemo) (string, error) {
	sig := componentSig(open)

	memo.mu.Lock()
	text, ok := memo.entries[sig]
	memo.mu.Unlock()
	if ok {
		return text, nil
	}

	text, err := opts.Collapser.Collapse(ctx, open, opts.Context)
	if err != nil {
		return "", fmt.Errorf("collapse component %d: %w", open.RootID, err)
	}

	memo.mu.Lock()
	memo.entries[sig] = text
	memo.mu.Unlock()
	return text, nil
}

// undeclaredRefs returns the placeholder ids in text that are not declared
// inputs, in first-appearance order.
func undeclaredRefs(text string, inputs []toq.NodeID) []toq.NodeID {
	declared := make(map[toq.NodeID]bool, len(inputs))
	for _, in := range inputs {
		declared[in] = true
	}
	var bad []toq.NodeID
	for _, ref := range toq.Refs(text) {
		if !declared[ref] {
			bad = append(bad, ref)
		}
	}
	return bad
}
